package main

import (
	"os"

	"github.com/teamcutter/huber/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
