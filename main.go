package main

import (
	"os"

	"github.com/ChaseHampton/memorease/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
