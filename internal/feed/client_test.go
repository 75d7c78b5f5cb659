package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_ReceivesEvents(t *testing.T) {
	event := `{
		"type": "transfer",
		"contract": "0x1000000000000000000000000000000000000001",
		"from": "0x2000000000000000000000000000000000000002",
		"to": "0x3000000000000000000000000000000000000003",
		"value": "1000",
		"tx_hash": "0xabc0000000000000000000000000000000000000000000000000000000000000",
		"block_number": 18000000,
		"timestamp": 1700000000
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(event)))
		// Keep the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case ev := <-client.Events():
		assert.Equal(t, domain.EventTransfer, ev.Type)
		assert.Equal(t, common.HexToAddress("0x1000000000000000000000000000000000000001"), ev.Contract)
		assert.Equal(t, "1000", ev.Value.String())
		assert.Equal(t, uint64(18000000), ev.BlockNumber)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestClient_SubscribeSendsWatchedSet(t *testing.T) {
	subCh := make(chan subscribeRequest, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req subscribeRequest
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if json.Unmarshal(msg, &req) == nil {
			subCh <- req
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer client.Close()

	addr := common.HexToAddress("0x1000000000000000000000000000000000000001")
	require.NoError(t, client.Subscribe(addr))

	select {
	case req := <-subCh:
		assert.Equal(t, "subscribe", req.Op)
		assert.Equal(t, []string{addr.Hex()}, req.Contracts)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe message received")
	}
}

func TestClient_ReconnectResubscribes(t *testing.T) {
	var connections atomic.Int64
	subCh := make(chan subscribeRequest, 2)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		n := connections.Add(1)
		for {
			var req subscribeRequest
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if json.Unmarshal(msg, &req) == nil && req.Op == "subscribe" {
				subCh <- req
			}
			if n == 1 {
				// Drop the first connection right after the subscribe.
				conn.Close()
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond

	client, err := Dial(context.Background(), wsURL(server), &cfg)
	require.NoError(t, err)
	defer client.Close()

	addr := common.HexToAddress("0x1000000000000000000000000000000000000001")
	require.NoError(t, client.Subscribe(addr))

	// First subscribe, then the connection drops and the client must
	// resubscribe on the new connection.
	for i := 0; i < 2; i++ {
		select {
		case req := <-subCh:
			assert.Equal(t, []string{addr.Hex()}, req.Contracts)
		case <-time.After(5 * time.Second):
			t.Fatalf("subscribe %d not received", i+1)
		}
	}
	assert.GreaterOrEqual(t, connections.Load(), int64(2))
}

func TestClient_MalformedMessagesSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unknown"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"type": "approval",
			"contract": "0x1000000000000000000000000000000000000001",
			"from": "0x2000000000000000000000000000000000000002",
			"to": "0x3000000000000000000000000000000000000003",
			"tx_hash": "0xdef0000000000000000000000000000000000000000000000000000000000000",
			"block_number": 18000001,
			"timestamp": 1700000100
		}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case ev := <-client.Events():
		// Only the valid approval event survives.
		assert.Equal(t, domain.EventApproval, ev.Type)
		assert.Nil(t, ev.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, open := <-client.Events()
	assert.False(t, open)
}

func TestClient_IdleConnectionStaysAlive(t *testing.T) {
	var connections atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		connections.Add(1)
		// Read loop so incoming pings are answered with pongs.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ReadTimeout = 150 * time.Millisecond
	cfg.PingInterval = 40 * time.Millisecond
	cfg.ReconnectDelay = 10 * time.Millisecond

	client, err := Dial(context.Background(), wsURL(server), &cfg)
	require.NoError(t, err)
	defer client.Close()

	// Several read deadlines would lapse here if pings were not keeping the
	// quiet connection alive.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int64(1), connections.Load(), "quiet but healthy feed must not reconnect")
}
