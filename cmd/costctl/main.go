// costctl runs the costing and payroll computations from the command line.
//
// Usage:
//
//	costctl recipe --input recipe.json
//	costctl batch --input batch.json
//	costctl payroll --input week.json [--format csv]
//	costctl migrate
//	costctl seed
//	costctl settings set-indirect --pct 18
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Simplici0/dltaller/internal/config"
	"github.com/Simplici0/dltaller/internal/logging"
)

func main() {
	cfg := config.Load()

	if err := newApp(cfg).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg config.Config) *cli.App {
	return &cli.App{
		Name:  "costctl",
		Usage: "Recipe, batch and payroll cost calculations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   cfg.LogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "db",
				Value:   cfg.DBPath,
				Usage:   "SQLite database path",
				EnvVars: []string{"DB_PATH"},
			},
		},
		Before: func(c *cli.Context) error {
			logging.Setup(c.String("log-level"), true)
			return nil
		},
		Commands: []*cli.Command{
			recipeCommand(),
			batchCommand(),
			payrollCommand(cfg),
			migrateCommand(),
			seedCommand(cfg),
			settingsCommand(),
		},
	}
}
