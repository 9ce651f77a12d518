// Package live pushes render requests to the browsers that display a
// document. The MathLive widget in each page does the actual rendering, so
// the hub is the server-side face of the live engine.
package live

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/mathedit/internal/engine"
)

const (
	EventSubscribed = "subscribed"
	EventRender     = "render"

	writeWait  = 10 * time.Second
	sendBuffer = 8
)

// Event is the message format sent to subscribers.
type Event struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans render events out to websocket subscribers, keyed by document.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

var _ engine.Live = (*Hub)(nil)

// NewHub returns an empty hub. A nil logger discards output.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Loader hands the hub to engine.Capabilities.Load.
func (h *Hub) Loader() engine.LiveLoader {
	return func(context.Context) (engine.Live, error) { return h, nil }
}

// RegisterRoutes mounts the subscription endpoint.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws/live", h.handleWebSocket)
}

// RenderMathInDocument asks every page showing documentID to re-render its
// math. Slow subscribers whose buffers are full miss the event.
func (h *Hub) RenderMathInDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := Event{Type: EventRender, DocumentID: documentID}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[documentID] {
		select {
		case s.send <- ev:
		default:
			h.logger.Printf("[live    ] [status=\"dropped\"] %s", documentID)
		}
	}
	return nil
}

// Subscribers returns the number of open connections for documentID.
func (h *Hub) Subscribers(documentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[documentID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for s := range set {
			s.conn.Close()
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("document_id")
	if docID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "document_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("live: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	s := &subscriber{conn: conn, send: make(chan Event, sendBuffer)}
	s.send <- Event{Type: EventSubscribed, DocumentID: docID}
	h.add(docID, s)
	defer h.remove(docID, s)

	go h.writeLoop(s)

	// Subscribers never send anything meaningful; reading only detects
	// the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("live: websocket read: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	for ev := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteJSON(ev); err != nil {
			h.logger.Printf("live: websocket write: %v", err)
			return
		}
	}
}

func (h *Hub) add(docID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[docID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[docID] = set
	}
	set[s] = struct{}{}
}

// remove drops s and closes its send channel. Holding mu while closing keeps
// RenderMathInDocument from sending on a closed channel.
func (h *Hub) remove(docID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[docID], s)
	if len(h.subs[docID]) == 0 {
		delete(h.subs, docID)
	}
	close(s.send)
}
