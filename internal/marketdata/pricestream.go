package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// defaultStreamEndpoint is the Binance USDT-M futures combined stream host.
const defaultStreamEndpoint = "wss://fstream.binance.com/stream"

// StreamConfig configures mark-price stream behavior.
type StreamConfig struct {
	// Endpoint overrides the stream host (tests point it at a local server).
	Endpoint string
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns the default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Endpoint:          defaultStreamEndpoint,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// PriceStream keeps the latest mark price of a fixed instrument set from
// the exchange push stream. It reconnects with exponential backoff; the
// subscription set travels in the URL so nothing needs resubscribing.
type PriceStream struct {
	endpoint string
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	quotes   map[string]streamQuote // keyed by upper-case symbol
	quotesMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

type streamQuote struct {
	price  float64
	timeMs int64
}

// NewPriceStream connects and starts consuming mark-price updates for the
// given tickers.
func NewPriceStream(ctx context.Context, tickers []string, config *StreamConfig) (*PriceStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultStreamEndpoint
		}
	}

	streams := make([]string, len(tickers))
	for i, t := range tickers {
		streams[i] = strings.ToLower(t) + "@markPrice"
	}

	s := &PriceStream{
		endpoint: cfg.Endpoint + "?streams=" + strings.Join(streams, "/"),
		config:   cfg,
		quotes:   make(map[string]streamQuote),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// connect establishes the websocket connection.
func (s *PriceStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// MarkPrice returns the latest streamed mark price for the ticker.
// Returns ErrNoQuote until the first update for that ticker arrives.
func (s *PriceStream) MarkPrice(_ context.Context, ticker string) (float64, int64, error) {
	s.quotesMu.RLock()
	q, ok := s.quotes[strings.ToUpper(ticker)]
	s.quotesMu.RUnlock()

	if !ok {
		return 0, 0, ErrNoQuote
	}
	return q.price, q.timeMs, nil
}

// Close shuts the stream down.
func (s *PriceStream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// readLoop reads stream messages and updates the quote cache.
func (s *PriceStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect waits out the backoff delay and dials again.
func (s *PriceStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}
}

// handleMessage parses one combined-stream payload.
func (s *PriceStream) handleMessage(message []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}
	if env.Data.EventType != "markPriceUpdate" || env.Data.Symbol == "" {
		return
	}

	price, err := strconv.ParseFloat(env.Data.MarkPrice, 64)
	if err != nil {
		return
	}

	s.quotesMu.Lock()
	s.quotes[env.Data.Symbol] = streamQuote{price: price, timeMs: env.Data.EventTimeMs}
	s.quotesMu.Unlock()
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *PriceStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, the reader handles reconnect.
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Combined stream message types

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   markPriceUpdate `json:"data"`
}

type markPriceUpdate struct {
	EventType   string `json:"e"`
	EventTimeMs int64  `json:"E"`
	Symbol      string `json:"s"`
	MarkPrice   string `json:"p"`
}

var _ PriceQuoter = (*PriceStream)(nil)
