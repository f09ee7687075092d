// Package main is the smoothie-kiosk command.
package main

import (
	"fmt"
	"os"

	"github.com/fairyhunter13/smoothie-kiosk/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
