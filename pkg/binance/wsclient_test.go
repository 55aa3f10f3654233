package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tickflow/internal/market"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// go test -v --run TestTradeStreamSurvivesRoutineDrops
func TestTradeStreamSurvivesRoutineDrops(t *testing.T) {
	// Venue behavior: accept the connection, stream one trade, then drop
	// it. A healthy feed sees this over and over.
	var upgrader websocket.Upgrader
	var mu sync.Mutex
	sessions := 0
	frame := []byte(`{"e":"trade","s":"BTCUSDT","t":1,"p":"100","q":"1","T":1672515782136}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		sessions++
		mu.Unlock()
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		conn.Close()
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	var ticks int32
	s := NewTradeStream(wsURL, "BTCUSDT", 2, func(market.Tick) {
		atomic.AddInt32(&ticks, 1)
	}, zap.NewNop())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	// With an attempt budget of 2, cumulative counting would give up
	// after the second drop. Sessions that delivered data must reset the
	// budget, so the stream outlives many routine disconnects.
	deadline := time.Now().Add(15 * time.Second)
	for {
		mu.Lock()
		n := sessions
		mu.Unlock()
		if n >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stream stopped reconnecting after %d sessions", n)
		}
		select {
		case err := <-errCh:
			t.Fatalf("stream gave up during routine drops: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}

	// Once the venue is truly gone, consecutive failures exhaust the
	// budget.
	srv.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Fatalf("expected ErrRetriesExhausted, got %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("stream did not give up after the venue went away")
	}

	if atomic.LoadInt32(&ticks) < 3 {
		t.Errorf("expected at least 3 delivered ticks, got %d", ticks)
	}
}
