package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/primisapp/primis-backend/internal/broadcast"
)

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) broadcast.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading websocket frame: %v", err)
	}

	var msg broadcast.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("decoding frame %q: %v", frame, err)
	}
	return msg
}

func TestWebSocketWelcome(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	welcome := readMessage(t, conn)
	if welcome.Type != broadcast.TypeConnection {
		t.Errorf("welcome type = %q, want %q", welcome.Type, broadcast.TypeConnection)
	}
	if welcome.Data.Timestamp == "" {
		t.Error("welcome timestamp is empty")
	}
}

func TestWebSocketReceivesBroadcast(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	readMessage(t, conn) // welcome

	env.hub.Broadcast(broadcast.NewDeviceStatus("860000000000001", "online"))

	msg := readMessage(t, conn)
	if msg.Type != broadcast.TypeDeviceStatus {
		t.Errorf("type = %q, want %q", msg.Type, broadcast.TypeDeviceStatus)
	}
	if msg.Data.IMEI != "860000000000001" {
		t.Errorf("imei = %q", msg.Data.IMEI)
	}
	if msg.Data.Status != "online" {
		t.Errorf("status = %q", msg.Data.Status)
	}
}

func TestWebSocketMultipleClients(t *testing.T) {
	env := newTestEnv(t)

	first := dialWS(t, env)
	second := dialWS(t, env)
	readMessage(t, first)
	readMessage(t, second)

	env.hub.Broadcast(broadcast.NewTelemetry("860000000000001", map[string]any{"temp": 21.5}))

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != broadcast.TypeTelemetry {
			t.Errorf("type = %q, want %q", msg.Type, broadcast.TypeTelemetry)
		}
	}
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)
	readMessage(t, conn)

	if env.hub.Count() != 1 {
		t.Fatalf("hub count = %d, want 1", env.hub.Count())
	}

	conn.Close() //nolint:errcheck

	// The read pump notices the close asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for env.hub.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("hub count = %d after disconnect, want 0", env.hub.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
