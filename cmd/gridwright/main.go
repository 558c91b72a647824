package main

import (
	"github.com/gridwright/gridwright/internal/cmd"
)

// Injected at build time via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
