package main

import (
	"os"

	"pairchat/cmd/pairctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
