package notify

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Client adapts a websocket connection to the Subscriber interface.
// The connection permits a single concurrent writer, so Send holds a
// mutex for the duration of the write.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex
}

// NewClient constructs a client wrapper.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send delivers one text frame. A failed write closes the connection
// and reports the error so the hub drops the subscriber.
func (c *Client) Send(payload []byte) error {
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Warn("websocket send failed", "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}
