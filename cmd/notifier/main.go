package main

import (
	"fmt"
	"os"

	"regulatory_notifier/cmd/notifier/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(commands.ExitCode(err))
	}
}
