package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/Simplici0/dltaller/internal/civil"
	"github.com/Simplici0/dltaller/internal/config"
	"github.com/Simplici0/dltaller/internal/costing"
	"github.com/Simplici0/dltaller/internal/db"
	"github.com/Simplici0/dltaller/internal/migrations"
	"github.com/Simplici0/dltaller/internal/payroll"
	"github.com/Simplici0/dltaller/internal/seed"
	"github.com/Simplici0/dltaller/internal/store"
)

func inputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Path to the JSON request, - for stdin",
		Required: true,
	}
}

// weekInput is the payroll request file.
type weekInput struct {
	WeekStart civil.Date                `json:"weekStart"`
	Factors   payroll.PartialFactors    `json:"factors"`
	Entries   []payroll.DayEntry        `json:"entries"`
	Rates     map[int64]decimal.Decimal `json:"rates"`
}

// payrollRow is one employee-day of the CSV export.
type payrollRow struct {
	EmployeeID    int64  `csv:"employee_id"`
	Date          string `csv:"date"`
	HolidayFlag   bool   `csv:"holiday"`
	HourlyRate    string `csv:"hourly_rate"`
	RegularHours  string `csv:"regular_hours"`
	OvertimeHours string `csv:"overtime_hours"`
	DoubleHours   string `csv:"double_hours"`
	HolidayHours  string `csv:"holiday_hours"`
	RegularPay    string `csv:"regular_pay"`
	OvertimePay   string `csv:"overtime_pay"`
	DoublePay     string `csv:"double_pay"`
	HolidayPay    string `csv:"holiday_pay"`
	GrossPay      string `csv:"gross_pay"`
}

func recipeCommand() *cli.Command {
	return &cli.Command{
		Name:  "recipe",
		Usage: "Estimate the cost of a recipe request",
		Flags: []cli.Flag{inputFlag()},
		Action: func(c *cli.Context) error {
			var req costing.RecipeRequest
			if err := readJSON(c, &req); err != nil {
				return err
			}
			result, err := costing.ComputeRecipeCost(req)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, result)
		},
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Compute the actual cost of a production batch request",
		Flags: []cli.Flag{inputFlag()},
		Action: func(c *cli.Context) error {
			var req costing.BatchRequest
			if err := readJSON(c, &req); err != nil {
				return err
			}
			result, err := costing.ComputeBatchCost(req)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, result)
		},
	}
}

func payrollCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "payroll",
		Usage: "Compute a weekly payroll request",
		Flags: []cli.Flag{
			inputFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "json",
				Usage:   "Output format (json, csv)",
			},
		},
		Action: func(c *cli.Context) error {
			format := c.String("format")
			if format != "json" && format != "csv" {
				return fmt.Errorf("unsupported format %q", format)
			}

			var in weekInput
			if err := readJSON(c, &in); err != nil {
				return err
			}
			if err := payroll.CheckWeekStart(in.WeekStart, cfg.PayrollWeekStart); err != nil {
				return err
			}

			result, err := payroll.ComputeWeeklyPayroll(in.WeekStart, in.Factors.Over(payroll.DefaultFactors), in.Entries, in.Rates)
			if err != nil {
				return err
			}
			if format == "csv" {
				return writePayrollCSV(c.App.Writer, result)
			}
			return writeJSON(c.App.Writer, result)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, database *sql.DB) error {
				if err := migrations.Up(ctx, database); err != nil {
					return err
				}
				version, err := migrations.Version(ctx, database)
				if err != nil {
					return err
				}
				log.Info().Int64("version", version).Msg("database migrated")
				return nil
			})
		},
	}
}

func seedCommand(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Migrate and load the demo catalog",
		Action: func(c *cli.Context) error {
			return withDB(c, func(ctx context.Context, database *sql.DB) error {
				if err := migrations.Up(ctx, database); err != nil {
					return err
				}
				stats, err := seed.Run(ctx, database, seed.Config{GlobalIndirectPct: cfg.GlobalIndirectPct})
				if err != nil {
					return err
				}
				log.Info().Int("inserts", stats.Inserts).Msg("demo catalog seeded")
				return nil
			})
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change workshop-wide defaults",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the stored settings",
				Action: func(c *cli.Context) error {
					return withDB(c, func(ctx context.Context, database *sql.DB) error {
						settings, err := store.New(database).GetSettings(ctx)
						if err != nil {
							return err
						}
						return writeJSON(c.App.Writer, settings)
					})
				},
			},
			{
				Name:  "set-indirect",
				Usage: "Store the global indirect percentage (18 or 0.18 both mean 18%)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pct", Required: true, Usage: "Indirect percentage"},
				},
				Action: func(c *cli.Context) error {
					pct, err := decimal.NewFromString(c.String("pct"))
					if err != nil {
						return fmt.Errorf("parse --pct: %w", err)
					}
					return withDB(c, func(ctx context.Context, database *sql.DB) error {
						if err := store.New(database).SetGlobalIndirectPct(ctx, pct); err != nil {
							return err
						}
						log.Info().Str("indirect", costing.NormalizePercent(pct).String()).Msg("global indirect percentage stored")
						return nil
					})
				},
			},
		},
	}
}

func withDB(c *cli.Context, fn func(ctx context.Context, database *sql.DB) error) error {
	ctx := c.Context
	database, err := db.Open(ctx, c.String("db"))
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(ctx, database)
}

func readJSON(c *cli.Context, dst any) error {
	path := c.String("input")

	var r io.Reader = c.App.Reader
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePayrollCSV(w io.Writer, week payroll.WeekResult) error {
	rows := make([]*payrollRow, 0)
	for _, line := range week.Lines {
		for _, day := range line.Days {
			rows = append(rows, &payrollRow{
				EmployeeID:    line.EmployeeID,
				Date:          day.Date.String(),
				HolidayFlag:   day.HolidayFlag,
				HourlyRate:    line.HourlyRate.String(),
				RegularHours:  day.Regular.String(),
				OvertimeHours: day.Overtime.String(),
				DoubleHours:   day.Double.String(),
				HolidayHours:  day.Holiday.String(),
				RegularPay:    day.RegularPay.StringFixed(payroll.PayPlaces),
				OvertimePay:   day.OvertimePay.StringFixed(payroll.PayPlaces),
				DoublePay:     day.DoublePay.StringFixed(payroll.PayPlaces),
				HolidayPay:    day.HolidayPay.StringFixed(payroll.PayPlaces),
				GrossPay:      day.GrossPay.StringFixed(payroll.PayPlaces),
			})
		}
	}
	return gocsv.Marshal(&rows, w)
}
