// Package api provides the HTTP gateway in front of the embedding generator.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// BodyLimit caps the request body in bytes. Defaults to DefaultBodyLimit.
	BodyLimit int
}
