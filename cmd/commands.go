package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/baechuer/cityevents/services/crop-service/internal/config"
	"github.com/baechuer/cityevents/services/crop-service/internal/logger"
	"github.com/baechuer/cityevents/services/crop-service/internal/schema"
)

var createCroppingsCommand = &cli.Command{
	Name:   "create-needed-croppings",
	Usage:  "Create the default croppings missing for all configured image fields.",
	Action: createCroppingsCmd,
}

func createCroppingsCmd(cc *cli.Context) error {
	logger.Init()
	log := logger.Logger

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setup, err := loadCroppingSetup(cfg, log)
	if err != nil {
		return err
	}

	ctx := cc.Context
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	summary, err := b.runner(cfg, setup, log).Run(ctx, "cli")
	if err != nil {
		return err
	}
	fmt.Fprintln(cc.App.Writer, summary.Message())
	return nil
}

var cropVariantsOpts struct {
	table string
	typ   string
	field string
}

var cropVariantsCommand = &cli.Command{
	Name:   "crop-variants",
	Usage:  "Print the crop variants registered for an image field.",
	Action: cropVariantsCmd,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "table",
			Usage:       "Table of the image field",
			Required:    true,
			Destination: &cropVariantsOpts.table,
		},
		&cli.StringFlag{
			Name:        "type",
			Usage:       "Record type of the image field",
			Value:       schema.TypeAll,
			Destination: &cropVariantsOpts.typ,
		},
		&cli.StringFlag{
			Name:        "field",
			Usage:       "Name of the image field",
			Required:    true,
			Destination: &cropVariantsOpts.field,
		},
	},
}

func cropVariantsCmd(cc *cli.Context) error {
	logger.InitWithWriter(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setup, err := loadCroppingSetup(cfg, logger.Logger)
	if err != nil {
		return err
	}

	variants, ok := setup.schema.CropVariants(cropVariantsOpts.table, cropVariantsOpts.typ, cropVariantsOpts.field)
	if !ok {
		return cli.Exit(fmt.Sprintf("no crop variants for %s.%s.%s", cropVariantsOpts.table, cropVariantsOpts.typ, cropVariantsOpts.field), 1)
	}
	enc := json.NewEncoder(cc.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(variants)
}
