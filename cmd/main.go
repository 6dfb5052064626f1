package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:     "crop-service",
		HelpName: "crop-service",
		Usage:    "Responsive image cropping for file references",
		Commands: []*cli.Command{
			serveCommand,
			createCroppingsCommand,
			cropVariantsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
