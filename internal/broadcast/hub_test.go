package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func dialWS(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestHubRoutesByItem(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	router := mux.NewRouter()
	NewWSHandler(hub, zerolog.Nop()).RegisterRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	itemConn := dialWS(t, server, "/ws/items/7")
	defer itemConn.Close()
	firehoseConn := dialWS(t, server, "/ws/events")
	defer firehoseConn.Close()

	// Both get the welcome frame first.
	if msg := readText(t, itemConn); !strings.Contains(msg, `"item_id":7`) {
		t.Errorf("item welcome = %s", msg)
	}
	if msg := readText(t, firehoseConn); !strings.Contains(msg, `"item_id":0`) {
		t.Errorf("firehose welcome = %s", msg)
	}

	waitForSubscribers(t, hub, 7, 1)
	waitForSubscribers(t, hub, 0, 1)

	hub.BroadcastItem(7, []byte(`{"type":"Bid","item_id":7}`))
	if msg := readText(t, itemConn); !strings.Contains(msg, `"Bid"`) {
		t.Errorf("item client received %s", msg)
	}

	hub.BroadcastAll([]byte(`{"type":"Paused"}`))
	if msg := readText(t, firehoseConn); !strings.Contains(msg, `"Paused"`) {
		t.Errorf("firehose client received %s", msg)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	router := mux.NewRouter()
	NewWSHandler(hub, zerolog.Nop()).RegisterRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, "/ws/items/1")
	readText(t, conn)
	waitForSubscribers(t, hub, 1, 1)

	conn.Close()
	waitForSubscribers(t, hub, 1, 0)

	// Broadcasting after disconnect must not panic or block.
	hub.BroadcastItem(1, []byte(`{}`))
}

func TestImmediateDisconnect(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	router := mux.NewRouter()
	NewWSHandler(hub, zerolog.Nop()).RegisterRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	// A client that drops right after the upgrade must not crash the
	// welcome delivery, even when the read pump errors out before the
	// welcome frame is written.
	for i := 0; i < 20; i++ {
		conn := dialWS(t, server, "/ws/items/3")
		conn.Close()
	}

	waitForSubscribers(t, hub, 3, 0)
	hub.BroadcastItem(3, []byte(`{}`))
}

func waitForSubscribers(t *testing.T, hub *Hub, itemID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(itemID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("item %d subscribers = %d, want %d", itemID, hub.SubscriberCount(itemID), want)
}
