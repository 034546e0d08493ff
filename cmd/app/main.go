package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"LiveChart/internal/di"
	"LiveChart/internal/domain/catalogue"
	"LiveChart/pkg/config"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "livechart",
		Usage: "real-time chart stream synchronizer",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the chart service",
				Action: serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Value:   "config/config.yaml",
						Usage:   "config file path",
						EnvVars: []string{"LIVECHART_CONFIG"},
					},
				},
			},
			{
				Name:   "catalogue",
				Usage:  "print the indicator catalogue",
				Action: printCatalogue,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Printf("livechart: %v", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadWithEnv(c.String("config"))
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	// blocks until signal
	return app.Run(c.Context)
}

func printCatalogue(c *cli.Context) error {
	tbl := tabwriter.NewWriter(os.Stdout, 1, 1, 2, ' ', 0)
	fmt.Fprintln(tbl, "TYPE\tLABEL\tPARAMS\tCOMPONENTS\tCOLOR")
	for _, e := range catalogue.Default().Entries() {
		params := make([]string, 0, len(e.Params))
		for _, p := range e.Params {
			params = append(params, fmt.Sprintf("%s=%g[%g..%g]", p.Name, p.Default, p.Min, p.Max))
		}
		components := "value"
		if len(e.Components) > 0 {
			components = strings.Join(e.Components, ",") + " (plots " + e.Components[e.Primary] + ")"
		}
		fmt.Fprintf(tbl, "%s\t%s\t%s\t%s\t%s\n", e.Type, e.Label, strings.Join(params, " "), components, e.Color)
	}
	return tbl.Flush()
}
