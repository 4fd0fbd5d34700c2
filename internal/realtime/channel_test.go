package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncmart/branchd/internal/reconcile"
)

var upgrader = websocket.Upgrader{}

// testServer runs onConn for every websocket connection and returns the
// ws:// URL to dial
func testServer(t *testing.T, onConn func(*websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		onConn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// holdOpen blocks until the peer closes the connection
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestConnect_JoinsBranchRoom(t *testing.T) {
	joins := make(chan Envelope, 1)
	url := testServer(t, func(conn *websocket.Conn) {
		joins <- readEnvelope(t, conn)
		holdOpen(conn)
	})

	m := NewManager(Config{URL: url}, Handlers{}, nil)
	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))
	defer m.Disconnect()

	select {
	case env := <-joins:
		assert.Equal(t, EventJoinBranch, env.Event)
		var data map[string]string
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "b1", data["branchId"])
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the join event")
	}
}

func TestConnect_SecondScopeRejected(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn) {
		readEnvelope(t, conn)
		holdOpen(conn)
	})

	m := NewManager(Config{URL: url}, Handlers{}, nil)
	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))

	err := m.Connect(context.Background(), CustomerScope("c1"))
	assert.Equal(t, ErrAlreadyConnected, err)

	// Disconnecting releases the slot for a different scope
	m.Disconnect()
	require.NoError(t, m.Connect(context.Background(), RegistrationScope("0790000000")))
	m.Disconnect()
}

func TestDispatch_OrderEventReachesHandler(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn) {
		readEnvelope(t, conn) // join
		payload := `{"event": "newOrder", "data": {"id": "o1", "status": "placed", "fulfillment": "pickup"}}`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
		holdOpen(conn)
	})

	snaps := make(chan *reconcile.Snapshot, 1)
	m := NewManager(Config{URL: url}, Handlers{
		OrderUpdate: func(snap *reconcile.Snapshot) { snaps <- snap },
	}, nil)
	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))
	defer m.Disconnect()

	select {
	case snap := <-snaps:
		assert.Equal(t, "o1", snap.ID)
		require.NotNil(t, snap.Status)
		assert.Equal(t, "placed", string(*snap.Status))
	case <-time.After(2 * time.Second):
		t.Fatal("order event never dispatched")
	}
}

func TestDispatch_ScopeHandlers(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn) {
		readEnvelope(t, conn)
		frames := []string{
			`{"event": "syncmart:status", "data": false}`,
			`{"event": "syncmart:delivery-service-available", "data": true}`,
			`{"event": "walletUpdated", "data": 4200}`,
			`{"event": "branchStatusUpdated", "data": {"status": "approved"}}`,
			`{"event": "someFutureEvent", "data": {}}`,
		}
		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		holdOpen(conn)
	})

	type seen struct {
		kind  string
		value interface{}
	}
	events := make(chan seen, 4)
	m := NewManager(Config{URL: url}, Handlers{
		StoreStatus:          func(open bool) { events <- seen{"store", open} },
		DeliveryAvailability: func(ok bool) { events <- seen{"delivery", ok} },
		WalletBalance:        func(b int64) { events <- seen{"wallet", b} },
		BranchApproval:       func(s string) { events <- seen{"approval", s} },
	}, nil)
	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))
	defer m.Disconnect()

	want := map[string]interface{}{
		"store":    false,
		"delivery": true,
		"wallet":   int64(4200),
		"approval": "approved",
	}
	for i := 0; i < len(want); i++ {
		select {
		case ev := <-events:
			assert.Equal(t, want[ev.kind], ev.value)
		case <-time.After(2 * time.Second):
			t.Fatal("missing dispatched events")
		}
	}
}

func TestEmit(t *testing.T) {
	emits := make(chan Envelope, 2)
	url := testServer(t, func(conn *websocket.Conn) {
		for {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			emits <- env
		}
	})

	m := NewManager(Config{URL: url}, Handlers{}, nil)

	// Emitting without a connection fails cleanly
	assert.Equal(t, ErrNotConnected, m.Emit(EventStoreStatus, true))

	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))
	defer m.Disconnect()
	<-emits // join

	require.NoError(t, m.Emit(EventStoreStatus, false))
	select {
	case env := <-emits:
		assert.Equal(t, EventStoreStatus, env.Event)
		var open bool
		require.NoError(t, json.Unmarshal(env.Data, &open))
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the emit")
	}
}

func TestDisconnect_WhileReconnecting(t *testing.T) {
	var connCount int32
	url := testServer(t, func(conn *websocket.Conn) {
		// Drop the first connections right after the join to keep the manager
		// in its redial loop while Disconnect runs
		if atomic.AddInt32(&connCount, 1) <= 2 {
			conn.ReadMessage()
			conn.Close()
			return
		}
		holdOpen(conn)
	})

	m := NewManager(Config{
		URL:        url,
		MinBackoff: 5 * time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
	}, Handlers{}, nil)
	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))

	time.Sleep(20 * time.Millisecond)
	finished := make(chan struct{})
	go func() {
		m.Disconnect()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatal("Disconnect hung while the channel was reconnecting")
	}

	// The scope slot is free again
	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))
	m.Disconnect()
}

func TestReconnect_RejoinsRoom(t *testing.T) {
	joins := make(chan Envelope, 2)
	var connCount int32
	url := testServer(t, func(conn *websocket.Conn) {
		joins <- readEnvelope(t, conn)
		if atomic.AddInt32(&connCount, 1) == 1 {
			conn.Close() // drop the first connection to force a reconnect
			return
		}
		holdOpen(conn)
	})

	m := NewManager(Config{
		URL:        url,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
	}, Handlers{}, nil)
	require.NoError(t, m.Connect(context.Background(), BranchScope("b1")))
	defer m.Disconnect()

	for i := 0; i < 2; i++ {
		select {
		case env := <-joins:
			assert.Equal(t, EventJoinBranch, env.Event)
		case <-time.After(3 * time.Second):
			t.Fatalf("expected join %d after reconnect", i+1)
		}
	}
}
