package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSSourceReconnects(t *testing.T) {
	var sessions atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := sessions.Add(1)
		if n == 1 {
			// first session: two messages, then drop the connection
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`a`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`b`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`c`))
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	src := NewWSSource("ws"+strings.TrimPrefix(srv.URL, "http"), zerolog.Nop())
	src.MinBackoff = 10 * time.Millisecond
	src.MaxBackoff = 20 * time.Millisecond

	var (
		mu  sync.Mutex
		got []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(p []byte) {
			mu.Lock()
			got = append(got, string(p))
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.GreaterOrEqual(t, sessions.Load(), int32(2))
}

func TestWSSourceStopsWhileDialing(t *testing.T) {
	src := NewWSSource("ws://127.0.0.1:1/status", zerolog.Nop())
	src.MinBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, func([]byte) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
