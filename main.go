package main

import "github.com/creativeprojects/mailstrip/cmd"

// values set at build time with ldflags
var (
	version = "0.2.0-dev"
	commit  = ""
	date    = ""
	builtBy = ""
)

func main() {
	cmd.Execute(version, commit, date, builtBy)
}
