package main

import (
	"os"

	"windowtracker/cli"
)

func main() {
	os.Exit(cli.Execute())
}
