package main

import (
	"os"

	"github.com/sadopc/letstodo/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
