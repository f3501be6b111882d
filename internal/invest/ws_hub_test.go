package invest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *WSHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// repeatBroadcast resends msg until stop closes, so a reader that connects
// slightly after the first send still receives a copy.
func repeatBroadcast(hub *WSHub, msg WSMessage, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			hub.Broadcast(msg)
		}
	}
}

func TestWSHub_BroadcastDelivers(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	conn := dialTestHub(t, hub)

	stop := make(chan struct{})
	defer close(stop)
	go repeatBroadcast(hub, WSMessage{
		Type:       "significant_growth",
		PositionID: "p1",
		OwnerID:    "u1",
		Value:      "1025",
	}, stop)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "significant_growth" || msg.PositionID != "p1" {
		t.Errorf("got %+v", msg)
	}
}

// A dead client is evicted mid-broadcast while the surviving client keeps
// receiving; run under -race this exercises the hub's map locking.
func TestWSHub_ConcurrentBroadcastEvictsDeadClient(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	live := dialTestHub(t, hub)
	doomed := dialTestHub(t, hub)
	doomed.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Broadcast(WSMessage{Type: "position_created", PositionID: "p1"})
			}
		}()
	}
	wg.Wait()

	stop := make(chan struct{})
	defer close(stop)
	go repeatBroadcast(hub, WSMessage{Type: "position_created", PositionID: "p1"}, stop)

	live.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := live.ReadMessage(); err != nil {
		t.Fatalf("surviving client stopped receiving: %v", err)
	}
}
