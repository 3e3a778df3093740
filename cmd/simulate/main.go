package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"futures-backtest-lab/internal/alerts"
	"futures-backtest-lab/internal/config"
	"futures-backtest-lab/internal/domain"
	"futures-backtest-lab/internal/marketdata"
	"futures-backtest-lab/internal/simulation"
	"futures-backtest-lab/internal/storage"
	chstore "futures-backtest-lab/internal/storage/clickhouse"
	"futures-backtest-lab/internal/storage/memory"
	"futures-backtest-lab/internal/storage/migrations"
	pgstore "futures-backtest-lab/internal/storage/postgres"
	"futures-backtest-lab/internal/strategy"
)

// Paper-trades the configured strategies live: every candle interval the
// strategies are consulted over fresh history, and accepted intents are
// opened at the streamed mark price and tracked until the engine closes
// them.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML run configuration")
	flag.Parse()

	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		strat, err := strategy.FromConfig(sc)
		if err != nil {
			log.Fatal().Err(err).Str("type", sc.Type).Msg("build strategy")
		}
		strategies = append(strategies, strat)
	}

	interval := strategies[0].Interval()
	for _, strat := range strategies {
		if strat.Interval() != interval {
			log.Fatal().Msg("live simulation requires a single candle interval")
		}
	}
	tickEvery, err := intervalDuration(interval)
	if err != nil {
		log.Fatal().Err(err).Msg("parse interval")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Stores.
	var (
		orderStore storage.OrderStore           = memory.NewOrderStore()
		tracked    storage.TrackedPositionStore = memory.NewTrackedPositionStore()
	)
	if !cfg.Storage.UseMemory {
		if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickHouseDSN == "" {
			log.Fatal().Msg("postgres and clickhouse dsns are required unless storage.use_memory is set")
		}

		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("postgres migrations")
		}
		tracked = pgstore.NewTrackedPositionStore(pool)

		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("clickhouse migrations")
		}
		defer conn.Close()
		orderStore = chstore.NewOrderStore(conn)
	}

	// Alerts.
	var notifier alerts.Notifier = alerts.Nop{}
	if cfg.Telegram.Token != "" {
		notifier, err = alerts.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram notifier")
		}
	}

	// Mark prices come from the websocket stream.
	stream, err := marketdata.NewPriceStream(ctx, cfg.Instruments, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("open price stream")
	}
	defer stream.Close()

	scheduler := simulation.NewTimerScheduler()
	defer scheduler.Close()

	runner := simulation.NewRunner(simulation.RunnerOptions{
		Quoter:    stream,
		Tracked:   tracked,
		Orders:    orderStore,
		Scheduler: scheduler,
		Notifier:  notifier,
		Log:       log,
	})
	scheduler.Bind(func(ctx context.Context, payload *simulation.TaskPayload) {
		err := runner.Refresh(ctx, payload)
		if err != nil && !errors.Is(err, simulation.ErrTrackingExpired) {
			log.Error().Str("ticker", payload.Ticker).Str("label", payload.Label).Err(err).Msg("refresh failed")
		}
	})

	if err := runner.Resume(ctx); err != nil {
		log.Fatal().Err(err).Msg("resume tracked positions")
	}

	log.Info().Str("interval", interval).Int("instruments", len(cfg.Instruments)).Int("strategies", len(strategies)).Msg("simulation started")

	source := marketdata.NewBinanceSource()
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			scan(ctx, log, source, strategies, cfg, runner, tickEvery)
		}
	}
}

// scan consults every strategy over every instrument once and tracks the
// intents it accepts.
func scan(ctx context.Context, log zerolog.Logger, source *marketdata.BinanceSource, strategies []strategy.Strategy, cfg *config.Config, runner *simulation.Runner, candleDur time.Duration) {
	indexTicker := cfg.IndexTicker
	if indexTicker == "" {
		indexTicker = "BTCUSDT"
	}

	for _, strat := range strategies {
		caps := strat.Capabilities()
		lookback := caps.WindowSize
		if caps.WarmupCandles > lookback {
			lookback = caps.WarmupCandles
		}
		startTimeMs := time.Now().Add(-candleDur * time.Duration(lookback+2)).UnixMilli()

		var indexCandles []*domain.Candle
		if caps.NeedsIndexCandles {
			var err error
			indexCandles, err = source.Candles(ctx, indexTicker, strat.Interval(), startTimeMs)
			if err != nil {
				log.Warn().Str("ticker", indexTicker).Err(err).Msg("index fetch failed, skipping strategy this scan")
				continue
			}
		}

		for _, instrument := range cfg.Instruments {
			candles, err := source.Candles(ctx, instrument, strat.Interval(), startTimeMs)
			if err != nil {
				log.Warn().Str("ticker", instrument).Err(err).Msg("candle fetch failed")
				continue
			}
			if len(candles) < caps.WindowSize {
				continue
			}

			input := &strategy.Input{Candles: candles[len(candles)-caps.WindowSize:]}
			if caps.NeedsIndexCandles {
				if len(indexCandles) < caps.WindowSize {
					continue
				}
				input.IndexCandles = indexCandles[len(indexCandles)-caps.WindowSize:]
			}

			intent, err := strat.Analyze(ctx, input)
			if err != nil {
				log.Warn().Str("ticker", instrument).Str("label", strat.Label()).Err(err).Msg("strategy failed")
				continue
			}
			if intent == nil {
				continue
			}

			switch err := runner.Track(ctx, intent); {
			case err == nil:
			case errors.Is(err, storage.ErrDuplicateKey):
				log.Debug().Str("ticker", instrument).Str("label", strat.Label()).Msg("position already tracked")
			default:
				log.Warn().Str("ticker", instrument).Str("label", strat.Label()).Err(err).Msg("track failed")
			}
		}
	}
}

// intervalDuration converts a Binance kline interval ("1m", "4h", "1d")
// into a duration.
func intervalDuration(interval string) (time.Duration, error) {
	if interval == "" {
		return 0, fmt.Errorf("empty interval")
	}

	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(strings.TrimSuffix(interval, string(unit)))
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", interval, err)
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
}
