package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
)

const (
	// writeWait limita cuánto puede bloquear al hub un cliente lento
	writeWait = 5 * time.Second
	// broadcastBuffer absorbe ráfagas de finalizaciones mientras el hub escribe
	broadcastBuffer = 64
)

// Conn es la parte de *websocket.Conn que usa el hub
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscription struct {
	sessionID string
	conn      Conn
}

// envelope va a todas las conexiones de sessionID, o solo a conn si no es nil
type envelope struct {
	sessionID string
	conn      Conn
	data      []byte
}

// Hub reparte los eventos de finalización a las conexiones de cada sesión.
// Solo la goroutine de Run escribe en las conexiones.
type Hub struct {
	clients    map[string]map[Conn]bool
	broadcast  chan envelope
	register   chan subscription
	unregister chan Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[Conn]bool),
		broadcast:  make(chan envelope, broadcastBuffer),
		register:   make(chan subscription),
		unregister: make(chan Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run procesa el hub hasta que ctx termina; al salir cierra todas las conexiones
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for _, conns := range h.clients {
				for conn := range conns {
					conn.Close()
				}
			}
			h.clients = make(map[string]map[Conn]bool)
			h.mutex.Unlock()
			return

		case sub := <-h.register:
			h.mutex.Lock()
			if h.clients[sub.sessionID] == nil {
				h.clients[sub.sessionID] = make(map[Conn]bool)
			}
			h.clients[sub.sessionID][sub.conn] = true
			h.mutex.Unlock()
			h.logger.Debug("websocket client connected", zap.String("session_id", sub.sessionID), zap.Int("total", h.ClientCount()))

		case conn := <-h.unregister:
			h.mutex.Lock()
			h.removeLocked(conn)
			h.mutex.Unlock()
			h.logger.Debug("websocket client disconnected", zap.Int("total", h.ClientCount()))

		case env := <-h.broadcast:
			for _, conn := range h.targets(env) {
				if err := h.write(conn, env.data); err != nil {
					h.logger.Warn("sending websocket message", zap.String("session_id", env.sessionID), zap.Error(err))
					h.mutex.Lock()
					h.removeLocked(conn)
					h.mutex.Unlock()
				}
			}
		}
	}
}

// targets copia las conexiones destino para escribir sin tener el mutex
func (h *Hub) targets(env envelope) []Conn {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	conns := h.clients[env.sessionID]
	if env.conn != nil {
		if conns[env.conn] {
			return []Conn{env.conn}
		}
		return nil
	}
	out := make([]Conn, 0, len(conns))
	for conn := range conns {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) write(conn Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// removeLocked cierra conn y la borra de su sesión
func (h *Hub) removeLocked(conn Conn) {
	for id, conns := range h.clients {
		if _, ok := conns[conn]; !ok {
			continue
		}
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.clients, id)
		}
		return
	}
}

// Register suscribe conn a los eventos de sessionID. Al volver, cualquier
// Publish posterior de esa sesión llega a conn.
func (h *Hub) Register(sessionID string, conn Conn) {
	select {
	case h.register <- subscription{sessionID: sessionID, conn: conn}:
	case <-h.done:
		conn.Close()
	}
}

func (h *Hub) Unregister(conn Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish envía el mensaje de finalización a las conexiones de la sesión
func (h *Hub) Publish(sessionID string, msg models.CompletionMessage) {
	h.enqueue(envelope{sessionID: sessionID}, msg)
}

// SendTo envía msg solo a conn, que debe estar registrada en sessionID. La
// escritura la hace Run, igual que en Publish.
func (h *Hub) SendTo(sessionID string, conn Conn, msg models.CompletionMessage) {
	h.enqueue(envelope{sessionID: sessionID, conn: conn}, msg)
}

func (h *Hub) enqueue(env envelope, msg models.CompletionMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encoding completion message", zap.Error(err))
		return
	}
	env.data = data
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}

// ClientCount obtiene el número de conexiones abiertas
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}
