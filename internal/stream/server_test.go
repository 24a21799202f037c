package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, p *Processor) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(p)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestWebsocketPingPong(t *testing.T) {
	p := newTestProcessor(3)
	_, conn := dialTestHub(t, p)

	if err := conn.WriteJSON(Envelope{Type: MsgTypePing}); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != MsgTypePong {
		t.Fatalf("got %q, want pong", env.Type)
	}
}

func TestWebsocketEventAndAlertBroadcast(t *testing.T) {
	p := newTestProcessor(4)
	p.Shepherd().RegisterActor("a", []float64{0.97, 0.01, 0.01, 0.01})
	p.Shepherd().RegisterActor("b", []float64{0.01, 0.01, 0.01, 0.97})
	_, conn := dialTestHub(t, p)

	ev, err := json.Marshal(Event{ActorID: "a", Observation: []float64{1, 0, 0, 0}, TimestampMS: 1000})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Type: MsgTypeEvent, Data: ev}); err != nil {
		t.Fatalf("write: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Type != MsgTypeAlert {
		t.Fatalf("got %q, want alert", env.Type)
	}
	var alert struct {
		ActorA string `json:"actor_a"`
		ActorB string `json:"actor_b"`
		Level  string `json:"alert_level"`
	}
	if err := json.Unmarshal(env.Data, &alert); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if alert.ActorA != "a" || alert.ActorB != "b" {
		t.Fatalf("unexpected dyad: %s-%s", alert.ActorA, alert.ActorB)
	}
	if alert.Level == "" || alert.Level == "green" {
		t.Fatalf("unexpected level %q", alert.Level)
	}
}

func TestWebsocketRejectsBadEvent(t *testing.T) {
	p := newTestProcessor(3)
	_, conn := dialTestHub(t, p)

	ev, _ := json.Marshal(Event{ActorID: "", Observation: []float64{1, 0, 0}})
	if err := conn.WriteJSON(Envelope{Type: MsgTypeEvent, Data: ev}); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != MsgTypeError {
		t.Fatalf("got %q, want error", env.Type)
	}
}

func TestWebsocketSummary(t *testing.T) {
	p := newTestProcessor(3)
	_, conn := dialTestHub(t, p)

	if err := conn.WriteJSON(Envelope{Type: MsgTypeSummary}); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != MsgTypeSummary {
		t.Fatalf("got %q, want summary", env.Type)
	}
	var sum struct {
		NActors int `json:"n_actors"`
	}
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
}
