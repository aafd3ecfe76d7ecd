package dashboard

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func dialHub(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, err := websocket.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), "", ts.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHub_StalledClientDoesNotBlockBroadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	ts := httptest.NewServer(hub.Handler())
	defer ts.Close()

	// The stalled client never reads.
	dialHub(t, ts)
	healthy := dialHub(t, ts)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 5*time.Millisecond)

	received := make(chan struct{}, 1)
	go func() {
		for {
			var msg string
			if err := websocket.Message.Receive(healthy, &msg); err != nil {
				close(received)
				return
			}
			received <- struct{}{}
		}
	}()

	// Each round waits for the healthy client only; the stalled client's
	// socket buffers fill up and its queue overflows.
	payload := strings.Repeat("x", 256<<10)
	for i := 0; i < 200; i++ {
		start := time.Now()
		hub.Broadcast(payload)
		select {
		case _, ok := <-received:
			require.True(t, ok, "healthy client dropped in round %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: healthy client starved", i)
		}
		require.Less(t, time.Since(start), time.Second, "round %d", i)
	}

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.CloseAll()
	assert.Zero(t, hub.Clients())
}
