package main

import (
	"os"

	"github.com/classboard/classboard/cmd/classboardctl/cli"
)

func main() {
	os.Exit(cli.Execute())
}
