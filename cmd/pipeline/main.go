// Package main provides the entry point for the pipeline CLI.
package main

import (
	"context"
	"os"

	"github.com/forgeworks/pipeline/internal/cli"
)

// Build information set via ldflags.
//
//nolint:gochecknoglobals // Set at build time
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	os.Exit(cli.ExitCodeForError(err))
}
