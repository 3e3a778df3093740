package marketdata

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"

	"futures-backtest-lab/internal/domain"
)

// klinePageLimit is the maximum klines per request on the futures API.
const klinePageLimit = 1500

// BinanceSource fetches candles and mark prices from the Binance USDT-M
// futures REST API. Public market data needs no credentials.
type BinanceSource struct {
	client *futures.Client
}

// NewBinanceSource creates a Binance market data source.
func NewBinanceSource() *BinanceSource {
	return &BinanceSource{client: futures.NewClient("", "")}
}

// Candles fetches the candle history from startTimeMs to now, paginating
// through the klines endpoint. Candles come back ordered by open time ASC.
func (s *BinanceSource) Candles(ctx context.Context, ticker, interval string, startTimeMs int64) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	start := startTimeMs
	for {
		klines, err := s.client.NewKlinesService().
			Symbol(ticker).
			Interval(interval).
			Limit(klinePageLimit).
			StartTime(start).
			Do(ctx)
		if err != nil {
			return nil, &FetchError{Ticker: ticker, Err: err}
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			c, err := klineToCandle(ticker, k)
			if err != nil {
				return nil, &FetchError{Ticker: ticker, Err: err}
			}
			candles = append(candles, c)
		}

		if len(klines) < klinePageLimit {
			break
		}
		start = klines[len(klines)-1].CloseTime + 1
	}

	return candles, nil
}

// MarkPrice returns the current mark price of the instrument.
func (s *BinanceSource) MarkPrice(ctx context.Context, ticker string) (float64, int64, error) {
	premiums, err := s.client.NewPremiumIndexService().Symbol(ticker).Do(ctx)
	if err != nil {
		return 0, 0, &FetchError{Ticker: ticker, Err: err}
	}
	if len(premiums) == 0 {
		return 0, 0, ErrNoQuote
	}

	price, err := strconv.ParseFloat(premiums[0].MarkPrice, 64)
	if err != nil {
		return 0, 0, &FetchError{Ticker: ticker, Err: fmt.Errorf("parse mark price %q: %w", premiums[0].MarkPrice, err)}
	}
	return price, premiums[0].Time, nil
}

func klineToCandle(ticker string, k *futures.Kline) (*domain.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parse open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parse high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parse low %q: %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parse close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parse volume %q: %w", k.Volume, err)
	}
	quoteVolume, err := strconv.ParseFloat(k.QuoteAssetVolume, 64)
	if err != nil {
		return nil, fmt.Errorf("parse quote volume %q: %w", k.QuoteAssetVolume, err)
	}

	return domain.NewCandle(ticker, k.OpenTime, k.CloseTime, open, high, low, closePrice, volume, quoteVolume, k.TradeNum), nil
}

var _ CandleSource = (*BinanceSource)(nil)
var _ PriceQuoter = (*BinanceSource)(nil)
