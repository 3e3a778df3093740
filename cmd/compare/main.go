package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"futures-backtest-lab/internal/backtest"
	"futures-backtest-lab/internal/config"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/ranking"
	"futures-backtest-lab/internal/reporting"
	"futures-backtest-lab/internal/strategy"
)

// Replays every configured strategy over the same candle history and prints
// the ranking. Nothing is persisted; use the backtest command for that.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML run configuration")
	outPath := flag.String("out", "", "Write the ranking Markdown to this file (default stdout)")
	flag.Parse()

	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	startTimeMs, err := cfg.StartTimeMs()
	if err != nil {
		log.Fatal().Err(err).Msg("parse start time")
	}

	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		strat, err := strategy.FromConfig(sc)
		if err != nil {
			log.Fatal().Err(err).Str("type", sc.Type).Msg("build strategy")
		}
		strategies = append(strategies, strat)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	driver := backtest.NewDriver(backtest.Options{
		Source:      marketdata.NewBinanceSource(),
		Workers:     cfg.Workers,
		IndexTicker: cfg.IndexTicker,
		Log:         log,
	})

	summaries, err := driver.RunComparative(ctx, strategies, cfg.Instruments, startTimeMs)
	if err != nil {
		log.Fatal().Err(err).Msg("comparative run failed")
	}

	ranked := ranking.NewEvaluator().Evaluate(summaries)
	report := reporting.NewGenerator().Generate(summaries)

	output := ranking.RenderMarkdown(ranked) + "\n" + reporting.RenderMarkdown(report)
	if *outPath == "" {
		fmt.Print(output)
	} else if err := os.WriteFile(*outPath, []byte(output), 0o644); err != nil {
		log.Fatal().Err(err).Msg("write output")
	}
}
