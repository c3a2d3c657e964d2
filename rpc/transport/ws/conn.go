package ws

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGracePeriod is how long Close waits for the close frame to be written
const closeGracePeriod = time.Second

// wsConn adapts a gorilla websocket connection to transport.IConn.
// One text frame is one message.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex // gorilla supports one concurrent writer
	closeOnce    sync.Once
	closeErr     error
}

func newConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConn)
// --------------------------------------------------------------------------

func (c *wsConn) ReadMessage() (string, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				return "", io.EOF
			}
			return "", err
		}
		// control frames are handled by gorilla, everything else is a message
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return string(data), nil
		}
	}
}

func (c *wsConn) WriteMessage(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		// WriteControl may be called concurrently with the other methods
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
