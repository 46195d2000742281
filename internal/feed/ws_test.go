package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ict_bot/internal/models"
)

// мост, который рвёт соединение сразу после subscribe — клиент уходит в реконнект
func flakyBridge(dials *atomic.Int64) *httptest.Server {
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		_, _, _ = conn.ReadMessage() // subscribe
		_ = conn.Close()
	}))
}

func keepaliveGoroutines() int {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return strings.Count(string(buf[:n]), "(*BridgeClient).keepalive")
}

func TestStreamCandlesReconnectStopsKeepalive(t *testing.T) {
	var dials atomic.Int64
	srv := flakyBridge(&dials)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewBridgeClient(wsURL, srv.URL, 7, "test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := client.StreamCandles(ctx, []string{"EURUSD"}, models.TFM15)
	require.NoError(t, err)
	go func() {
		for range ch {
		}
	}()

	// несколько циклов реконнекта (пауза между попытками 1s)
	time.Sleep(3500 * time.Millisecond)

	require.GreaterOrEqual(t, dials.Load(), int64(2))
	assert.LessOrEqual(t, keepaliveGoroutines(), 1,
		"keepalive goroutines must not accumulate across reconnects")

	cancel()
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, keepaliveGoroutines())
}

func TestStreamCandlesUnknownTimeframe(t *testing.T) {
	client := NewBridgeClient("ws://localhost:1", "http://localhost:1", 0, "test")
	_, err := client.StreamCandles(context.Background(), []string{"EURUSD"}, models.Timeframe("M7"))
	require.ErrorIs(t, err, models.ErrUnknownTimeframe)
}
