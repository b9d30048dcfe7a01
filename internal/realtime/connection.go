package realtime

import (
	"context"
	"sync"
	"time"
)

// Connection is one live transport session. A user may own several at
// once (tabs, devices); the user binding is empty until the client
// announces itself.
//
// Send is never closed: senders race the connection's removal from the
// registry, so teardown is signalled through Done instead and envelopes
// buffered past that point are dropped with the connection.
type Connection struct {
	Id         string
	Send       chan Envelope
	CreateTime time.Time

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	userId string
}

func NewConnection(id string, sendBuffer int) *Connection {
	return &Connection{
		Id:         id,
		Send:       make(chan Envelope, sendBuffer),
		CreateTime: time.Now(),
		done:       make(chan struct{}),
	}
}

// Close marks the connection as torn down. Idempotent.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the connection has been torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) UserId() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.userId
}

func (c *Connection) setUserId(userId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.userId = userId
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}
