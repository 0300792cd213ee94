package main

import (
	"os"

	"github.com/collabhub/collabhub/cmd/sessionctl/cli"
)

func main() {
	os.Exit(cli.Execute())
}
