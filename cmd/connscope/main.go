// File: cmd/connscope/main.go (complete file)

package main

import (
	"os"

	"github.com/baptistax/connscope/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
