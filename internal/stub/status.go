package stub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minishop-go/minishop/pkg/api"
)

// heartbeatInterval is how often the SSE stream writes a comment line so
// intermediaries do not reap an idle connection.
const heartbeatInterval = 15 * time.Second

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSleep(w http.ResponseWriter, r *http.Request) {
	var req api.SleepRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	s.status = api.StoreStatus{
		IsSleepMode:  req.Sleep,
		SleepMessage: req.Message,
		UpdatedAt:    s.now().UTC(),
	}
	st := s.status
	for ch := range s.watchers {
		select {
		case ch <- st:
		default:
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

// watch registers a status subscriber. The returned cancel must be called on
// disconnect.
func (s *Server) watch() (<-chan api.StoreStatus, func()) {
	ch := make(chan api.StoreStatus, 4)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}
}

// handleStatusStream serves status updates as server-sent events. The
// current status is sent immediately, then every change as it happens.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		detail(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, cancel := s.watch()
	defer cancel()

	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	if err := writeEvent(w, st); err != nil {
		return
	}
	fl.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			fl.Flush()
		case st := <-updates:
			if err := writeEvent(w, st); err != nil {
				return
			}
			fl.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, st api.StoreStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
	return err
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stub trusts its callers; it is never exposed publicly.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStatusWS serves the same status feed over a WebSocket, for host
// WebViews that kill SSE connections.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancel := s.watch()
	defer cancel()

	// Reader goroutine: surface client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	if err := conn.WriteJSON(st); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case st := <-updates:
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		}
	}
}
