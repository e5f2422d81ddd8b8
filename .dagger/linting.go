package main

import (
	"context"
	"fmt"

	"dagger/embedsrv/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts layers golangci-lint on top of goContainer so CGO and the Go
// caches are already in place.
func (e *Embedsrv) lintOpts() dagger.GolangcilintOpts {
	base := e.goContainer("").
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{BaseCtr: base}
}

// CheckLint runs golangci-lint without applying fixes.
func (e *Embedsrv) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(e.Source, e.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint with --fix and returns the modified source
// directory.
func (e *Embedsrv) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(e.Source, e.lintOpts()).Lint()
}
