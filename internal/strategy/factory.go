package strategy

import "errors"

// Strategy type identifiers accepted by FromConfig.
const (
	TypeShadowReversal  = "SHADOW_REVERSAL"
	TypeIndexDivergence = "INDEX_DIVERGENCE"
)

// Factory errors
var (
	ErrUnknownStrategyType  = errors.New("unknown strategy type")
	ErrMissingInterval      = errors.New("strategy requires Interval")
	ErrMissingQuantity      = errors.New("strategy requires a positive Quantity")
	ErrMissingStopLossPct   = errors.New("strategy requires StopLossPct")
	ErrMissingShadowPercent = errors.New("SHADOW_REVERSAL requires MinShadowPercent")
	ErrMissingTrailingPct   = errors.New("SHADOW_REVERSAL requires TrailingStopPct")
	ErrMissingDivergencePct = errors.New("INDEX_DIVERGENCE requires DivergencePct")
	ErrMissingTakeProfitPct = errors.New("INDEX_DIVERGENCE requires TakeProfitPct")
)

// Config is the declarative form of a strategy, as read from run
// configuration. Optional parameters are pointers.
type Config struct {
	Type     string  `yaml:"type"`
	Interval string  `yaml:"interval"`
	Quantity float64 `yaml:"quantity"`
	Leverage int     `yaml:"leverage"`

	StopLossPct           *float64 `yaml:"stop_loss_pct"`
	TakeProfitPct         *float64 `yaml:"take_profit_pct"`
	TrailingStopPct       *float64 `yaml:"trailing_stop_pct"`
	TrailingActivationPct *float64 `yaml:"trailing_activation_pct"`
	MinShadowPercent      *float64 `yaml:"min_shadow_percent"`
	DivergencePct         *float64 `yaml:"divergence_pct"`
	WindowSize            int      `yaml:"window_size"`
}

// FromConfig creates a Strategy from its declarative config.
// Validates required parameters per strategy type.
func FromConfig(cfg Config) (Strategy, error) {
	if cfg.Interval == "" {
		return nil, ErrMissingInterval
	}
	if cfg.Quantity <= 0 {
		return nil, ErrMissingQuantity
	}
	if cfg.Leverage < 1 {
		cfg.Leverage = 1
	}

	switch cfg.Type {
	case TypeShadowReversal:
		return fromShadowReversalConfig(cfg)
	case TypeIndexDivergence:
		return fromIndexDivergenceConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

func fromShadowReversalConfig(cfg Config) (*ShadowReversalStrategy, error) {
	if cfg.MinShadowPercent == nil {
		return nil, ErrMissingShadowPercent
	}
	if cfg.StopLossPct == nil {
		return nil, ErrMissingStopLossPct
	}
	if cfg.TrailingStopPct == nil {
		return nil, ErrMissingTrailingPct
	}

	return NewShadowReversalStrategy(
		cfg.Interval,
		*cfg.MinShadowPercent,
		cfg.Quantity,
		cfg.Leverage,
		*cfg.StopLossPct,
		*cfg.TrailingStopPct,
		cfg.TrailingActivationPct,
	), nil
}

func fromIndexDivergenceConfig(cfg Config) (*IndexDivergenceStrategy, error) {
	if cfg.DivergencePct == nil {
		return nil, ErrMissingDivergencePct
	}
	if cfg.StopLossPct == nil {
		return nil, ErrMissingStopLossPct
	}
	if cfg.TakeProfitPct == nil {
		return nil, ErrMissingTakeProfitPct
	}

	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = 24
	}

	return NewIndexDivergenceStrategy(
		cfg.Interval,
		*cfg.DivergencePct,
		cfg.Quantity,
		cfg.Leverage,
		*cfg.StopLossPct,
		*cfg.TakeProfitPct,
		cfg.TrailingStopPct,
		windowSize,
	), nil
}
