package main

import (
	"os"

	"go-feeds/cmd"
)

// version 构建时通过 ldflags 注入
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
