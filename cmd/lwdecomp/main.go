package main

import (
	"os"

	"lwdecomp/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		cli.PrintError(os.Stdout, os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
