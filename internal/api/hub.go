package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CycleEvent is one status update pushed to dashboard clients while a sync
// cycle runs.
type CycleEvent struct {
	Stage     string    `json:"stage"` // listings / sales / ranking
	Message   string    `json:"message"`
	Succeeded int       `json:"succeeded"`
	Retried   int       `json:"retried"`
	Abandoned int       `json:"abandoned"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans cycle events out to connected websocket clients. A slow client is
// dropped instead of blocking the cycle.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan CycleEvent
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan CycleEvent)}
}

// Publish sends an event to every connected client without blocking.
func (h *Hub) Publish(event CycleEvent) {
	event.Timestamp = time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			// 消费太慢，直接断开，周期不等它
			delete(h.clients, conn)
			close(ch)
			conn.Close()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Serve upgrades one HTTP request and streams events until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[状态推送] websocket 升级失败: %v\n", err)
		return
	}

	ch := make(chan CycleEvent, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[conn]; ok {
			delete(h.clients, conn)
			close(ch)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// 丢弃客户端消息，只用于探测断连
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}
