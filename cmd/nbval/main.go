package main

import (
	"os"

	"github.com/ouseful-PR/nbval/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
