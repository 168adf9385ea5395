package coordinator

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = 250 * time.Millisecond

// ClientConn wraps one live websocket with a write guard. All raw socket I/O
// in the coordinator goes through this type.
type ClientConn struct {
	ID string

	mu   sync.Mutex
	conn *websocket.Conn
}

// SendJSON writes one JSON message under the connection's write lock.
func (c *ClientConn) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// CloseWithReason sends a close frame carrying the code and reason, then
// tears the socket down. The code tells the client why it was dropped
// (kicked, superseded, room terminated).
func (c *ClientConn) CloseWithReason(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(closeGracePeriod)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.conn.Close()
}

// ConnRegistry maps opaque connection ids to live transport handles.
type ConnRegistry struct {
	mu    sync.RWMutex
	conns map[string]*ClientConn
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{conns: make(map[string]*ClientConn)}
}

// Register wraps the socket and tracks it under the given id.
func (r *ConnRegistry) Register(id string, conn *websocket.Conn) *ClientConn {
	cc := &ClientConn{ID: id, conn: conn}
	r.mu.Lock()
	r.conns[id] = cc
	r.mu.Unlock()
	return cc
}

// Unregister forgets the connection. The socket itself is closed by the read
// loop or by an explicit eviction.
func (r *ConnRegistry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Get returns the live handle for id, or nil.
func (r *ConnRegistry) Get(id string) *ClientConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}

// Count returns the number of live connections.
func (r *ConnRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
