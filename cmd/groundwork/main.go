package main

import (
	"os"

	"github.com/moolen/groundwork/cmd/groundwork/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
