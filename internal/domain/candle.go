package domain

// CandleColor classifies a candle by its close relative to its open.
type CandleColor string

const (
	CandleGreen CandleColor = "GREEN" // close >= open
	CandleRed   CandleColor = "RED"   // close < open
)

// Candle represents one OHLCV sample for an instrument, with synthetic
// metrics derived at construction time. Corresponds to one row of the
// exchange klines payload.
type Candle struct {
	Ticker string // instrument symbol

	OpenTimeMs  int64   // interval start (ms, UTC)
	CloseTimeMs int64   // interval end (ms, UTC)
	Open        float64 // open price
	High        float64 // high price
	Low         float64 // low price
	Close       float64 // close price
	Volume      float64 // base asset volume
	QuoteVolume float64 // quote asset volume
	TradeCount  int64   // number of trades in the interval

	// Synthetic metrics, derived from the fields above.
	Color              CandleColor
	Shadow             float64 // high - low
	UpperShadow        float64 // wick above the body
	LowerShadow        float64 // wick below the body
	UpperShadowPercent float64 // upper wick share of the full range (0-100)
	LowerShadowPercent float64 // lower wick share of the full range (0-100)
	PriceInc           float64 // close - open
	PriceIncPercent    float64 // price change relative to open (0-100)
	PriceIncFactor     float64 // close / open
	RealBody           float64 // abs(close - open)
	IsLowHammer        bool
	IsHighHammer       bool
	IsHammer           bool
}

// NewCandle builds a candle and derives its synthetic metrics.
func NewCandle(ticker string, openTimeMs, closeTimeMs int64, open, high, low, closePrice, volume, quoteVolume float64, tradeCount int64) *Candle {
	c := &Candle{
		Ticker:      ticker,
		OpenTimeMs:  openTimeMs,
		CloseTimeMs: closeTimeMs,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closePrice,
		Volume:      volume,
		QuoteVolume: quoteVolume,
		TradeCount:  tradeCount,
	}
	c.deriveMetrics()
	return c
}

// TickCandle builds a degenerate candle from a single price observation.
// Live polling feeds these into the same lifecycle engine the replay uses.
func TickCandle(ticker string, timestampMs int64, price float64) *Candle {
	return NewCandle(ticker, timestampMs, timestampMs, price, price, price, price, 0, 0, 0)
}

func (c *Candle) deriveMetrics() {
	c.Shadow = c.High - c.Low

	if c.Open > c.Close {
		c.Color = CandleRed
		c.LowerShadow = c.Close - c.Low
		c.UpperShadow = c.High - c.Open
	} else {
		c.Color = CandleGreen
		c.LowerShadow = c.Open - c.Low
		c.UpperShadow = c.High - c.Close
	}

	if c.Shadow > 0 {
		c.UpperShadowPercent = c.UpperShadow / c.Shadow * 100
		c.LowerShadowPercent = c.LowerShadow / c.Shadow * 100
	} else {
		c.UpperShadowPercent = 0
		c.LowerShadowPercent = 0
	}

	c.PriceInc = c.Close - c.Open
	c.PriceIncPercent = c.PriceInc / c.Open * 100
	c.PriceIncFactor = c.Close / c.Open

	if c.PriceInc >= 0 {
		c.RealBody = c.PriceInc
	} else {
		c.RealBody = -c.PriceInc
	}

	c.IsLowHammer = c.LowerShadow > 2*c.RealBody && c.LowerShadow > c.RealBody+c.UpperShadow
	c.IsHighHammer = c.UpperShadow > 2*c.RealBody && c.UpperShadow > c.RealBody+c.LowerShadow
	c.IsHammer = c.IsLowHammer || c.IsHighHammer
}

// Accumulate folds another candle into this one, producing the candle of the
// union interval: widest range, earliest open, latest close, summed volumes.
// Synthetic metrics are re-derived. Folding a time-ordered set yields the
// same result regardless of grouping.
func (c *Candle) Accumulate(other *Candle) {
	if other.High > c.High {
		c.High = other.High
	}
	if other.Low < c.Low {
		c.Low = other.Low
	}

	if other.CloseTimeMs > c.CloseTimeMs {
		c.Close = other.Close
		c.CloseTimeMs = other.CloseTimeMs
	}
	if other.OpenTimeMs < c.OpenTimeMs {
		c.Open = other.Open
		c.OpenTimeMs = other.OpenTimeMs
	}

	c.Volume += other.Volume
	c.QuoteVolume += other.QuoteVolume
	c.TradeCount += other.TradeCount

	c.deriveMetrics()
}

// AccumulateAll folds a slice of candles into this one.
func (c *Candle) AccumulateAll(candles []*Candle) {
	for _, other := range candles {
		c.Accumulate(other)
	}
}
