package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/quantfoundry/walkforward/campaign"
	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/log"
	"github.com/quantfoundry/walkforward/store"
)

func main() {
	app := &cli.App{
		Name:  "walkforward",
		Usage: "run walk-forward backtest campaigns over historical daily bars",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "execute every sleeve in a campaign config and print the summary",
				Action: runCampaign,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Usage:    "campaign configuration file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "prices",
						Usage:    "JSON daily bar fixture file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "db",
						Usage: "sqlite database to persist sealed runs into",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "enable debug logging",
					},
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCampaign(c *cli.Context) error {
	if c.Bool("verbose") {
		log.GlobalLogConfig(log.Levels{Info: true, Debug: true, Warn: true, Error: true}, nil)
	}

	cfg, err := config.ReadConfigFromFile(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	source, err := datagate.LoadBarsFromFile(c.String("prices"))
	if err != nil {
		return fmt.Errorf("loading prices: %w", err)
	}

	var st campaign.Store
	if dbPath := c.String("db"); dbPath != "" {
		sqlStore, err := store.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer sqlStore.Close()
		st = sqlStore
	}

	runner, err := campaign.NewRunner(source, cfg.Holidays, st)
	if err != nil {
		return err
	}

	requests := make([]campaign.Request, 0, len(cfg.Sleeves))
	for i := range cfg.Sleeves {
		requests = append(requests, campaign.Request{
			Sleeve: cfg.Sleeves[i],
			Start:  cfg.StartDate,
			End:    cfg.EndDate,
		})
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx, requests, cfg.MaxConcurrency)
	if err != nil {
		return err
	}
	fmt.Print(summary.String())
	if summary.Failed() {
		return cli.Exit("one or more sleeves failed", 1)
	}
	return nil
}
