package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.BufferSize = 100
	return cfg
}

func TestClientDial(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client, err := Dial(context.Background(), testClientConfig(wsURL(server)), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
}

func TestClientDialAuthHeader(t *testing.T) {
	var gotAuth string
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	cfg := testClientConfig(wsURL(server))
	cfg.Token = "session-token"
	client, err := Dial(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	if gotAuth != "Bearer session-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestClientReceiveMessages(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"connected","payload":{"connectionId":"c1"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"notification","payload":{}}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	client, err := Dial(context.Background(), testClientConfig(wsURL(server)), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	for i := 0; i < 2; i++ {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				t.Fatal("messages channel closed early")
			}
			if len(msg.Data) == 0 {
				t.Error("empty message data")
			}
			if msg.ReceivedAt.IsZero() {
				t.Error("missing receive timestamp")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestClientMessagesClosedOnServerDisconnect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Drop the connection immediately.
	})
	defer server.Close()

	client, err := Dial(context.Background(), testClientConfig(wsURL(server)), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	select {
	case _, ok := <-client.Messages():
		if ok {
			t.Error("expected messages channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for messages channel to close")
	}

	select {
	case err := <-client.Errors():
		if err == nil {
			t.Error("expected non-nil transport error")
		}
	default:
		// A clean server close may not surface an error; the closed
		// messages channel alone is enough for the manager.
	}
}

func TestClientDialFailure(t *testing.T) {
	cfg := testClientConfig("ws://127.0.0.1:1/sync/stream")
	if _, err := Dial(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected dial error for unreachable server")
	}
}
