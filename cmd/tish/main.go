package main

import (
	"os"

	"github.com/tish-sh/tish/cmd/tish/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
