package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"futures-backtest-lab/internal/config"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/orchestrator"
	"futures-backtest-lab/internal/reporting"
	"futures-backtest-lab/internal/storage"
	chstore "futures-backtest-lab/internal/storage/clickhouse"
	"futures-backtest-lab/internal/storage/memory"
	"futures-backtest-lab/internal/storage/migrations"
	"futures-backtest-lab/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML run configuration")
	reportPath := flag.String("report", "", "Write the Markdown report to this file (default stdout)")
	csvPath := flag.String("csv", "", "Write all closed orders as CSV to this file")
	jsonPath := flag.String("json", "", "Write the report as JSON to this file")
	flag.Parse()

	// Secrets come from .env when present.
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

	var (
		orderStore  storage.OrderStore  = memory.NewOrderStore()
		resultStore storage.ResultStore = memory.NewResultStore()
	)
	if !cfg.Storage.UseMemory {
		if cfg.Storage.ClickHouseDSN == "" {
			log.Fatal().Msg("clickhouse dsn is required unless storage.use_memory is set")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("clickhouse migrations")
		}
		defer conn.Close()

		orderStore = chstore.NewOrderStore(conn)
		resultStore = chstore.NewResultStore(conn)
	}

	runner := orchestrator.New(orchestrator.Options{
		Source:            marketdata.NewBinanceSource(),
		OrderStore:        orderStore,
		ResultStore:       resultStore,
		Strategies:        strategies,
		Instruments:       cfg.Instruments,
		StartTimeMs:       startTimeMs,
		IndexTicker:       cfg.IndexTicker,
		Workers:           cfg.Workers,
		CommissionPercent: cfg.CommissionPercent,
		Log:               log,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
	for _, msg := range result.Errors {
		log.Warn().Msg(msg)
	}

	for _, row := range result.Report.Summaries {
		if row.Ticker == reporting.CombinedTicker {
			log.Info().Str("label", row.Label).Msg(reporting.SummaryLine(row))
		}
	}

	markdown := reporting.RenderMarkdown(result.Report)
	if *reportPath == "" {
		fmt.Print(markdown)
	} else if err := os.WriteFile(*reportPath, []byte(markdown), 0o644); err != nil {
		log.Fatal().Err(err).Msg("write report")
	}

	if *csvPath != "" {
		orders := result.Summaries[0].Combined.Orders
		for _, s := range result.Summaries[1:] {
			orders = append(orders, s.Combined.Orders...)
		}
		if err := os.WriteFile(*csvPath, []byte(reporting.RenderOrdersCSV(orders)), 0o644); err != nil {
			log.Fatal().Err(err).Msg("write csv")
		}
	}

	if *jsonPath != "" {
		data, err := json.MarshalIndent(result.Report, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("encode report")
		}
		if err := os.WriteFile(*jsonPath, data, 0o644); err != nil {
			log.Fatal().Err(err).Msg("write json report")
		}
	}
}
