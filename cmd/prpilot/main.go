package main

import (
	"os"

	"github.com/dshills/prpilot/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
