package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tickflow/internal/market"
	"tickflow/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrRetriesExhausted is returned when a stream gives up reconnecting.
var ErrRetriesExhausted = errors.New("websocket reconnect attempts exhausted")

const (
	readDeadline     = 30 * time.Second
	pingInterval     = 15 * time.Second
	handshakeTimeout = 10 * time.Second
	reconnectBase    = time.Second
	reconnectMax     = 30 * time.Second
)

// TradeStream maintains one WebSocket subscription to a symbol's trade
// feed and pushes each normalized tick into the supplied handler.
// Malformed frames are logged, counted, and dropped.
type TradeStream struct {
	url         string
	symbol      string
	maxAttempts int
	handler     func(market.Tick)
	logger      *zap.Logger
}

// NewTradeStream builds a stream for one symbol. maxAttempts bounds
// consecutive reconnects; zero or negative means a single attempt.
func NewTradeStream(baseURL, symbol string, maxAttempts int, handler func(market.Tick), logger *zap.Logger) *TradeStream {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &TradeStream{
		url:         fmt.Sprintf("%s/ws/%s@trade", strings.TrimRight(baseURL, "/"), strings.ToLower(symbol)),
		symbol:      strings.ToUpper(symbol),
		maxAttempts: maxAttempts,
		handler:     handler,
		logger:      logger,
	}
}

// Run consumes the stream until the context is cancelled, reconnecting
// with exponential backoff on drops. Returns ErrRetriesExhausted once
// the attempt budget is spent on consecutive failed sessions.
func (s *TradeStream) Run(ctx context.Context) error {
	backoff := reconnectBase
	attempts := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delivered, err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if delivered {
			// A session that streamed data resets the budget: the bound
			// covers one outage, not the connection's lifetime. Venues
			// drop healthy connections routinely.
			attempts = 0
			backoff = reconnectBase
		}
		attempts++
		if attempts >= s.maxAttempts {
			s.logger.Error("giving up on trade stream",
				zap.String("symbol", s.symbol),
				zap.Int("attempts", attempts),
				zap.Error(err))
			return ErrRetriesExhausted
		}

		s.logger.Warn("trade stream disconnected, retrying",
			zap.String("symbol", s.symbol),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// consume runs one WebSocket session. delivered reports whether at
// least one frame was read before the session ended.
func (s *TradeStream) consume(ctx context.Context) (delivered bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	s.logger.Info("trade stream connected",
		zap.String("symbol", s.symbol),
		zap.String("url", s.url))

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// Keepalive pings; the deadline above detects a dead peer.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	// Unblock the read loop on cancellation.
	go func() {
		<-pingCtx.Done()
		_ = conn.Close()
	}()

	for {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return delivered, fmt.Errorf("read: %w", err)
		}
		delivered = true

		tick, err := NormalizeTrade(msg)
		if err != nil {
			metrics.MalformedMessages.WithLabelValues(s.symbol).Inc()
			s.logger.Warn("dropped malformed trade message",
				zap.String("symbol", s.symbol),
				zap.Error(err))
			continue
		}
		s.handler(tick)
	}
}
