package stream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sheldongordon4/coherence-engine/internal/adapters/stream"
	logging "github.com/sheldongordon4/coherence-engine/pkg/logger"
)

func httpHandler(hub *stream.Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	})
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForClients(ctx context.Context, hub *stream.Hub, want int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if hub.ClientCount(ctx) == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub.ClientCount(ctx) == want
}

func TestHub_BroadcastToSubscribers(t *testing.T) {
	_ = logging.Init("stream-test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(httpHandler(hub))
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()

	if !waitForClients(ctx, hub, 1, time.Second) {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount(ctx))
	}

	payload := map[string]any{"signalVolatility": 0.04, "trustContinuityRiskLevel": "low"}
	hub.BroadcastMetrics(ctx, payload)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var env stream.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if env.Type != "metrics" {
		t.Errorf("expected metrics envelope, got %q", env.Type)
	}
	body, ok := env.Payload.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload type %T", env.Payload)
	}
	if body["trustContinuityRiskLevel"] != "low" {
		t.Errorf("payload lost fields: %+v", body)
	}
}

func TestHub_IncidentEnvelope(t *testing.T) {
	_ = logging.Init("stream-test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(httpHandler(hub))
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()

	if !waitForClients(ctx, hub, 1, time.Second) {
		t.Fatalf("client never registered")
	}

	hub.BroadcastIncident(ctx, map[string]any{"kind": "drift_incident"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var env stream.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if env.Type != "incident" {
		t.Errorf("expected incident envelope, got %q", env.Type)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	_ = logging.Init("stream-test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(httpHandler(hub))
	defer server.Close()

	first := dialHub(t, server)
	second := dialHub(t, server)
	defer second.Close()

	if !waitForClients(ctx, hub, 2, time.Second) {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount(ctx))
	}

	first.Close()

	if !waitForClients(ctx, hub, 1, 2*time.Second) {
		t.Errorf("expected disconnect to unregister, got %d", hub.ClientCount(ctx))
	}
}

func TestHub_BroadcastWithoutSubscribersDoesNotBlock(t *testing.T) {
	_ = logging.Init("stream-test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	go hub.Run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.BroadcastMetrics(ctx, map[string]any{"i": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked with no subscribers")
	}
}
