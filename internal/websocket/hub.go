package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vidpullgo/internal/models"
)

const (
	broadcastBuffer = 64
	writeTimeout    = 5 * time.Second
	waitTimeout     = 60 * time.Second
)

// Hub pushes run progress to every connected websocket client.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
	runID     string
}

type ProgressUpdate struct {
	Type       string `json:"type"`
	RunID      string `json:"runId"`
	Downloaded uint   `json:"downloaded"`
	Skipped    uint   `json:"skipped"`
	Failed     uint   `json:"failed"`
	Error      string `json:"error,omitempty"`
}

func NewProgressUpdate(kind, runID string, c models.RunCounters) *ProgressUpdate {
	return &ProgressUpdate{
		Type:       kind,
		RunID:      runID,
		Downloaded: c.Downloaded,
		Skipped:    c.Skipped,
		Failed:     c.Failed,
	}
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastBuffer),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run delivers queued messages until ctx is done. Messages still queued at
// that point are flushed before all clients are closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.drain()
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case msg := <-h.broadcast:
			h.deliver(msg)
		default:
			return
		}
	}
}

func (h *Hub) deliver(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastProgress never blocks the caller; updates are dropped when the
// queue is full since the next batch will carry newer totals anyway.
func (h *Hub) BroadcastProgress(update *ProgressUpdate) {
	msg, err := json.Marshal(update)
	if err != nil {
		slog.Error("Failed to marshal progress update", "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		slog.Debug("Progress update dropped", "type", update.Type)
	}
}

func (h *Hub) OnRunStart(runID, dir string) {
	h.runID = runID
	h.BroadcastProgress(NewProgressUpdate("start", runID, models.RunCounters{}))
}

func (h *Hub) OnPage(page, items int) {}

func (h *Hub) OnItem(item models.MediaItem, outcome models.Outcome) {}

func (h *Hub) OnBatch(counters models.RunCounters) {
	h.BroadcastProgress(NewProgressUpdate("progress", h.runID, counters))
}

func (h *Hub) OnRunEnd(summary models.RunSummary) {
	update := NewProgressUpdate("done", summary.Id, summary.Counters)
	update.Error = summary.Error
	h.BroadcastProgress(update)
}

func (h *Hub) WsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("Client connected", "remote_addr", r.RemoteAddr)
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		slog.Info("Client disconnected")
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(waitTimeout))
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WS read error", "error", err)
			}
			break
		}
	}
}
