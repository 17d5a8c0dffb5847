// Package main provides the modelreg command-line client.
package main

import (
	"log"
	"os"

	"github.com/clean-dependency-project/modelreg/internal/cli"
)

func main() {
	app := cli.NewApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
