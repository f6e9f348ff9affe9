package dispatch

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialPair(t *testing.T, reg *WSRegistry, sessionID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		reg.Add(sessionID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	// registration happens on the server goroutine after the handshake
	deadline := time.Now().Add(2 * time.Second)
	for {
		reg.mu.RLock()
		_, ok := reg.sessions[sessionID]
		reg.mu.RUnlock()
		if ok {
			return client
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s never registered", sessionID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesConnectedDashboards(t *testing.T) {
	reg := NewWSRegistry(nil)
	client := dialPair(t, reg, "s1")

	reg.Broadcast(map[string]any{"type": "queue", "size": 3})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["type"] != "queue" || got["size"] != float64(3) {
		t.Fatalf("payload wrong: %+v", got)
	}
}

func TestBroadcastDropsDeadSessions(t *testing.T) {
	reg := NewWSRegistry(nil)
	_ = dialPair(t, reg, "s1")
	_ = dialPair(t, reg, "s2")

	// kill s1's server-side socket so the next send fails
	reg.mu.Lock()
	_ = reg.sessions["s1"].conn.Close()
	reg.mu.Unlock()

	reg.Broadcast(map[string]any{"type": "queue"})

	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if _, ok := reg.sessions["s1"]; ok {
		t.Fatal("dead session kept after failed send")
	}
	if _, ok := reg.sessions["s2"]; !ok {
		t.Fatal("healthy session dropped")
	}
}
