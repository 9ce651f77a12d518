package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

func setupServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, docID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live?document_id=" + docID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var ev Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read subscribed: %v", err)
	}
	if ev.Type != EventSubscribed || ev.DocumentID != docID {
		t.Fatalf("first event = %+v", ev)
	}
	return conn
}

func TestRenderReachesDocumentSubscribers(t *testing.T) {
	h, srv := setupServer(t)
	a := dial(t, srv, "doc-a")
	b := dial(t, srv, "doc-b")

	if n := h.Subscribers("doc-a"); n != 1 {
		t.Fatalf("Subscribers(doc-a) = %d", n)
	}
	if err := h.RenderMathInDocument(context.Background(), "doc-a"); err != nil {
		t.Fatalf("RenderMathInDocument: %v", err)
	}

	var ev Event
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := a.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != EventRender || ev.DocumentID != "doc-a" {
		t.Errorf("event = %+v", ev)
	}

	b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := b.ReadJSON(&ev); err == nil {
		t.Errorf("doc-b subscriber received %+v", ev)
	}
}

func TestRenderWithoutSubscribers(t *testing.T) {
	h := NewHub(nil)
	if err := h.RenderMathInDocument(context.Background(), "nobody"); err != nil {
		t.Errorf("RenderMathInDocument = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.RenderMathInDocument(ctx, "nobody"); err == nil {
		t.Error("expected context error")
	}
}

func TestUnsubscribeOnClose(t *testing.T) {
	h, srv := setupServer(t)
	conn := dial(t, srv, "doc-a")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers("doc-a") != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := h.Subscribers("doc-a"); n != 0 {
		t.Errorf("Subscribers after close = %d", n)
	}
	if err := h.RenderMathInDocument(context.Background(), "doc-a"); err != nil {
		t.Errorf("RenderMathInDocument after close = %v", err)
	}
}

func TestMissingDocumentID(t *testing.T) {
	_, srv := setupServer(t)
	resp, err := http.Get(srv.URL + "/ws/live")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLoader(t *testing.T) {
	h := NewHub(nil)
	l, err := h.Loader()(context.Background())
	if err != nil || l != h {
		t.Errorf("Loader = %v, %v", l, err)
	}
}
