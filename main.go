package main

import (
	"os"

	"github.com/chalkan3/pko-demo/cmd"
)

// Version information - set by goreleaser ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date, builtBy)
	os.Exit(cmd.Execute())
}
