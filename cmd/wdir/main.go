// Command wdir watches a directory and runs plugins on file changes.
package main

import (
	"os"

	"github.com/dshills/wdir/internal/cli"
)

// Version information (set via ldflags).
var version = "dev"

func main() {
	os.Exit(cli.Run(os.Args[1:], version, os.Stdout, os.Stderr))
}
