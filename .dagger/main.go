// Embedsrv CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/embedsrv/internal/dagger"
)

// Embedsrv is the main module for the embedsrv CI/CD pipeline
type Embedsrv struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Embedsrv CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".embedsrv", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Embedsrv {
	return &Embedsrv{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container for the given
// platform with gcc, CGO enabled, and the project source mounted. The sqlite
// vector store links sqlite-vec through cgo, so every build needs a C
// toolchain.
func (e *Embedsrv) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+string(platform))).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", e.Source)
}

// Test runs the unit tests via "go test". Tests needing Postgres or Qdrant
// skip themselves unless their connection env vars are set.
func (e *Embedsrv) Test(ctx context.Context) (string, error) {
	return e.goContainer("").
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// Serve runs the gateway against the given model backends, exposed on 8000.
func (e *Embedsrv) Serve(
	// Text model backend URL
	// +default="http://host.docker.internal:11434"
	textTarget string,

	// Image model backend URL
	// +default="http://host.docker.internal:11435"
	imageTarget string,
) *dagger.Service {
	return e.goContainer("").
		WithExec([]string{"go", "build", "-o", "/usr/local/bin/embedsrv", "./cli/embedsrv"}).
		WithExposedPort(8000).
		AsService(dagger.ContainerAsServiceOpts{Args: []string{
			"embedsrv", "serve",
			"--text-target", textTarget,
			"--image-target", imageTarget,
		}})
}
