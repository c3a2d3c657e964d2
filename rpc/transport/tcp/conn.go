package tcp

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
)

// frameSanitizer removes line breaks from outgoing frames. Raw line breaks
// can only occur as insignificant whitespace in JSON, so envelopes are not
// changed semantically.
var frameSanitizer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// tcpConn adapts a net.Conn to transport.IConn using newline delimited frames
type tcpConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

func newConn(conn net.Conn, readBufferSize int, writeTimeout time.Duration) *tcpConn {
	if readBufferSize <= 0 {
		readBufferSize = 64 * 1024
	}
	return &tcpConn{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, readBufferSize),
		writeTimeout: writeTimeout,
	}
}

// NewLineConn wraps any stream connection (tcp, unix) with the newline
// framing of this package
func NewLineConn(conn net.Conn, readBufferSize int, writeTimeout time.Duration) transport.IConn {
	return newConn(conn, readBufferSize, writeTimeout)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConn)
// --------------------------------------------------------------------------

func (c *tcpConn) ReadMessage() (string, error) {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			// a partial frame at EOF is dropped
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			// empty lines are keep-alives
			continue
		}
		return line, nil
	}
}

func (c *tcpConn) WriteMessage(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}

	frame := frameSanitizer.Replace(msg)
	b := net.Buffers{[]byte(frame), []byte{'\n'}}
	_, err := b.WriteTo(c.conn)
	return err
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// upgradeConnection applies performance optimizations to a TCP connection
// using configuration values from TCPConf and SocketConf
func upgradeConnection(conn net.Conn, config common.TransportConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}

	// Set socket buffer sizes if configured
	if config.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}
	if config.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}

	// Enable TCP keep-alive if configured
	if config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(config.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	// Set TCP linger option if configured
	if config.TCPLingerSec > 0 {
		if err := tcpConn.SetLinger(config.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}
