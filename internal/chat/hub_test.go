package chat

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func startHub(t *testing.T, completer Completer) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	hub.SetDispatcher(NewRelay(completer, hub))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.RunWithContext(ctx)
		close(stopped)
	}()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-stopped
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type responseFrame struct {
	Type string         `json:"type"`
	Data MessagePayload `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) responseFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f responseFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return f
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestHub_BroadcastsReplyToEveryClient(t *testing.T) {
	hub, url := startHub(t, &stubCompleter{outcome: Outcome{Text: "Integrals sum areas."}})
	sender := dial(t, url)
	other := dial(t, url)
	waitForClients(t, hub, 2)

	send(t, sender, `{"type":"message","data":{"message":"what is an integral?"}}`)

	for _, conn := range []*websocket.Conn{sender, other} {
		f := readFrame(t, conn)
		if f.Type != MessageTypeResponse || f.Data.Message != "Integrals sum areas." {
			t.Errorf("frame = %+v", f)
		}
	}
}

func TestHub_FallbackOnFailure(t *testing.T) {
	hub, url := startHub(t, &stubCompleter{outcome: Failed(ReasonTransport, context.DeadlineExceeded)})
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	send(t, conn, `{"type":"message","data":{"message":"hi"}}`)
	if f := readFrame(t, conn); f.Data.Message != FallbackMessage {
		t.Fatalf("message = %q, want fallback", f.Data.Message)
	}

	// nothing else follows the single fallback
	send(t, conn, `{"type":"ping"}`)
	if f := readFrame(t, conn); f.Type != MessageTypePong {
		t.Fatalf("type = %q, want pong", f.Type)
	}
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, url := startHub(t, &stubCompleter{})
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- hub.RunWithContext(ctx) }()

	client := &Client{id: 1, hub: hub, send: make(chan Message, 1), logger: zap.NewNop()}
	hub.register <- client
	cancel()

	select {
	case err := <-stopped:
		if err != context.Canceled {
			t.Fatalf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("client send channel still open")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("client count = %d after shutdown", hub.ClientCount())
	}
}

type blockingDispatcher struct {
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDispatcher) Dispatch(ctx context.Context, text string) {
	close(d.entered)
	<-d.release
}

// clientFrame text frame as a client sends it, masked with a zero key
func clientFrame(payload string) []byte {
	b := []byte{0x81, 0x80 | byte(len(payload)), 0, 0, 0, 0}
	return append(b, payload...)
}

func TestHub_PingQueuedBehindDispatchAfterShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	d := &blockingDispatcher{entered: make(chan struct{}), release: make(chan struct{})}
	hub.SetDispatcher(d)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.RunWithContext(ctx)
		close(stopped)
	}()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn)
	}))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	waitForClients(t, hub, 1)

	// both frames in one write so the ping is already buffered server side
	var raw bytes.Buffer
	raw.Write(clientFrame(`{"type":"message","data":{"message":"hi"}}`))
	raw.Write(clientFrame(`{"type":"ping"}`))
	if _, err := conn.NetConn().Write(raw.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher not called")
	}
	cancel()
	<-stopped
	close(d.release)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	// let the reader drain the buffered ping
	time.Sleep(100 * time.Millisecond)
}

func TestClient_EnqueueAfterSendClosed(t *testing.T) {
	tests := []struct {
		name  string
		close func(h *Hub, c *Client)
	}{
		{"shutdown", func(h *Hub, c *Client) { h.shutdown() }},
		{"unregister", func(h *Hub, c *Client) { h.removeClient(c) }},
		{"slow client dropped", func(h *Hub, c *Client) {
			for i := 0; i <= cap(c.send); i++ {
				h.broadcastToClients(Message{Type: MessageTypeResponse})
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(zap.NewNop())
			client := &Client{id: 1, hub: hub, send: make(chan Message, 4), logger: zap.NewNop()}
			hub.addClient(client)

			tt.close(hub, client)

			if hub.ClientCount() != 0 {
				t.Fatalf("client count = %d", hub.ClientCount())
			}
			if client.enqueue(Message{Type: MessageTypePong}) {
				t.Fatal("enqueue() = true on a closed client")
			}
			// a second close path must not close twice
			hub.removeClient(client)
		})
	}
}

func TestClient_EnqueueFullQueue(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := &Client{id: 1, hub: hub, send: make(chan Message, 1), logger: zap.NewNop()}
	hub.addClient(client)

	if !client.enqueue(Message{Type: MessageTypePong}) {
		t.Fatal("enqueue() = false on an empty queue")
	}
	if client.enqueue(Message{Type: MessageTypePong}) {
		t.Fatal("enqueue() = true on a full queue")
	}
}
