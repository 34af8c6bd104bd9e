package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/undertow/internal/cli"
)

func main() {
	// Local .env is optional; absence is not an error.
	_ = godotenv.Load()

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
