// cmd/georaft/main.go
package main

import (
	cmd "github.com/mwiater/georaft/internal/commands"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main injects build information and hands control to the cobra root command.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
