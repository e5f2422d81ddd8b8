package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/embedsrv/internal/dagger"
)

// Build and return directory of embedsrv binaries
func (e *Embedsrv) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// cgo rules out cross-compiling from one container, so each target
	// platform gets its own emulated builder
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	outputs := dag.Directory()

	for _, platform := range platforms {
		path := string(platform) + "/"

		build := e.goContainer(platform).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/embedsrv"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (e *Embedsrv) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/embedsrv/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/embedsrv/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/embedsrv/pkg/utils.Buildtime=%s'", buildtime),
	}

	return e.Build(ctx, strings.Join(ldflags, " "))
}
