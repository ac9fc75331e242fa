// bme-report prints device utilization reports from the configured reference
// source and asks running servers to reload.
//
// Usage:
//
//	bme-report equipment
//	bme-report device AE1 --format json
//	bme-report summary AE1 --service X001
//	bme-report reload --reason "nightly import"
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/urfave/cli/v2"

	"bmeutil/internal/amqp"
	appcli "bmeutil/internal/cli"
	"bmeutil/internal/config"
	applog "bmeutil/internal/log"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "bme-report",
		Usage:   "BME utilization reports",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"BME_REPORT_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   formatTable,
				Usage:   "Output format (table, json)",
			},
		},
		Before: func(c *cli.Context) error {
			appcli.LoadEnvFile()
			if f := c.String("format"); f != formatTable && f != formatJSON {
				return fmt.Errorf("unknown format %q", f)
			}
			return nil
		},
		Commands: []*cli.Command{
			equipmentCommand(),
			deviceCommand(),
			summaryCommand(),
			reloadCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the validated configuration and opens the reference source.
func setup(c *cli.Context) (*appcli.Service, error) {
	logger := appcli.SetupLogger(c.String("log-level"))
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return appcli.BuildService(c.Context, cfg, logger, nil)
}

func equipmentCommand() *cli.Command {
	return &cli.Command{
		Name:  "equipment",
		Usage: "List every device in the equipment registry",
		Action: func(c *cli.Context) error {
			svc, err := setup(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			equipment, err := svc.InitialEquipmentMap(c.Context)
			if err != nil {
				return err
			}
			if c.String("format") == formatJSON {
				return writeJSON(c.App.Writer, map[string]any{"bmeMap": equipment})
			}
			return writeEquipmentTable(c.App.Writer, equipment)
		},
	}
}

func deviceCommand() *cli.Command {
	return &cli.Command{
		Name:      "device",
		Usage:     "Show the per-month procedure lines of one device",
		ArgsUsage: "<ae-title>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("device requires exactly one AE title", 2)
			}
			svc, err := setup(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.BuildDeviceResponse(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			if c.String("format") == formatJSON {
				return writeJSON(c.App.Writer, resp)
			}
			return writeDeviceTable(c.App.Writer, resp)
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Show the monthly revenue, expense and depreciation series of one device",
		ArgsUsage: "<ae-title>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Usage:   "Only count procedures with this service code",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("summary requires exactly one AE title", 2)
			}
			svc, err := setup(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			months, err := svc.MonthlySummary(c.Context, c.Args().First(), c.String("service"))
			if err != nil {
				return err
			}
			if c.String("format") == formatJSON {
				return writeJSON(c.App.Writer, months)
			}
			return writeSummaryTable(c.App.Writer, months)
		},
	}
}

func reloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "Ask every running server to reload the reference tables",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "reason",
				Value: "manual",
				Usage: "Reason recorded with the request",
			},
		},
		Action: func(c *cli.Context) error {
			logger := appcli.SetupLogger(c.String("log-level"))
			cfg := config.Load()
			if !cfg.AMQPEnabled() {
				return cli.Exit("AMQP_URL is not set; reload notifications are disabled", 1)
			}
			return publishReload(c.Context, cfg, logger, c.String("reason"))
		},
	}
}

func publishReload(ctx context.Context, cfg *config.Config, logger *applog.Logger, reason string) error {
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReloadKey, logger)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	requestedBy := "bme-report"
	if u, err := user.Current(); err == nil {
		requestedBy = "bme-report:" + u.Username
	}
	if err := client.PublishReload(ctx, amqp.NewReloadMessage(reason, requestedBy)); err != nil {
		return err
	}
	fmt.Println("Reload requested")
	return nil
}
