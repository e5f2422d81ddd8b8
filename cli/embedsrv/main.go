package main

import (
	"os"

	embedsrvcmder "github.com/papercomputeco/embedsrv/cmd/embedsrv"
)

func main() {
	cmd := embedsrvcmder.NewEmbedsrvCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
