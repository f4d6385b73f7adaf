package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heliosquant/tradecore/internal/backtest"
	"github.com/heliosquant/tradecore/internal/feed"
	"github.com/heliosquant/tradecore/internal/ledger"
	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/optimizer"
	"github.com/heliosquant/tradecore/internal/types"
)

// runAction loads the config, streams the data file through one engine and
// writes the results into a timestamped folder under --output.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	outputPath := cmd.String("output")

	level := zapcore.InfoLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	cfg, err := backtest.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source, err := feed.NewDuckDBSource(log)
	if err != nil {
		return fmt.Errorf("failed to create bar source: %w", err)
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return fmt.Errorf("failed to initialize bar source: %w", err)
	}

	engine, err := backtest.NewEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	count, err := source.Count(cfg.StartTime, cfg.EndTime)
	if err != nil {
		return fmt.Errorf("failed to count bars: %w", err)
	}

	bar := progressbar.Default(int64(count))
	bar.Describe(fmt.Sprintf("Processing %s with %s", filepath.Base(dataPath), cfg.Strategy.Variant))

	engine.SetOnBarCallback(func(index, total int, b types.Bar) {
		bar.Add(1)
	})

	result, err := engine.Run(ctx, source)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	writer, err := ledger.NewCSVWriter(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create result writer: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteTrades(result.Trades); err != nil {
		return err
	}

	if err := writer.WriteEquityCurve(result.EquityCurve, result.EquityTimes); err != nil {
		return err
	}

	if err := writer.WriteOpenPosition(result.OpenPosition); err != nil {
		return err
	}

	if err := writer.WriteStats(result.Stats); err != nil {
		return err
	}

	log.Info("results written",
		zap.String("run_dir", writer.RunDir()),
		zap.Int("fills", len(result.Trades)),
		zap.Float64("final_portfolio_value", result.FinalPortfolioValue),
		zap.Float64("win_rate", result.Stats.TradeResult.WinRate),
		zap.Float64("sharpe_ratio", result.Stats.TradeResult.SharpeRatio),
	)

	return nil
}

// sweepAction expands a parameter grid, runs every trial over the same bar
// slice, and writes the ranked trial statistics to a YAML file.
func sweepAction(ctx context.Context, cmd *cli.Command) error {
	gridPath := cmd.String("grid")
	dataPath := cmd.String("data")
	statsPath := cmd.String("output")

	level := zapcore.InfoLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	grid, err := optimizer.LoadGrid(gridPath)
	if err != nil {
		return fmt.Errorf("failed to load grid: %w", err)
	}

	configs, err := grid.Expand()
	if err != nil {
		return fmt.Errorf("failed to expand grid: %w", err)
	}

	source, err := feed.NewDuckDBSource(log)
	if err != nil {
		return fmt.Errorf("failed to create bar source: %w", err)
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return fmt.Errorf("failed to initialize bar source: %w", err)
	}

	// Trials share one immutable in-memory copy of the bars.
	var (
		bars    []types.Bar
		readErr error
	)

	source.ReadAll(grid.Base.StartTime, grid.Base.EndTime)(func(b types.Bar, err error) bool {
		if err != nil {
			readErr = err

			return false
		}

		bars = append(bars, b)

		return true
	})

	if readErr != nil {
		return fmt.Errorf("failed to read bars: %w", readErr)
	}

	sweep := optimizer.NewSweep(log, int(cmd.Int("workers")), nil)

	results, err := sweep.Run(ctx, configs, bars)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	ranked := optimizer.Rank(results)

	if err := optimizer.WriteTrialStats(statsPath, ranked); err != nil {
		return fmt.Errorf("failed to write trial stats: %w", err)
	}

	log.Info("sweep results written",
		zap.String("stats_file", statsPath),
		zap.Int("trials", len(ranked)),
		zap.String("best", ranked[0].Describe()),
	)

	return nil
}

// schemaAction prints the JSON schema of the run configuration.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	cfg := backtest.Config{}

	schemaJSON, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schemaJSON)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run deterministic strategy backtests over indicator-annotated bars",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a single backtest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the YAML run configuration",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the bar data file (parquet or CSV)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory for run results",
						Value:   "results",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Enable debug logging",
					},
				},
				Action: runAction,
			},
			{
				Name:  "sweep",
				Usage: "Run a parameter sweep over a grid of configs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "grid",
						Aliases:  []string{"g"},
						Usage:    "Path to the YAML parameter grid",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the bar data file (parquet or CSV)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "File for the ranked trial statistics",
						Value:   "sweep_stats.yaml",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Number of trial workers, 0 selects NumCPU",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Enable debug logging",
					},
				},
				Action: sweepAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the run configuration JSON schema",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
