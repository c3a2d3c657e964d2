package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Transport settings shared by client and server
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings (ignored by the mem transport)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConfig groups the socket level options of a transport
type TransportConfig struct {
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

const (
	DefaultInitialReconnectDelayMs = 1000
	DefaultMaxReconnectDelayMs     = 10000
	DefaultDialTimeoutMs           = 5000
	DefaultWriteTimeoutMs          = 5000
	DefaultSubscriberBuffer        = 64
)

// ClientConfig holds all configuration parameters of a client connection
type ClientConfig struct {
	// Endpoint is the address of the peer (e.g. ws://localhost:8080/ws or localhost:8080 for tcp)
	Endpoint string

	// Reconnect backoff: the delay starts at the initial value, doubles on
	// every consecutive failure and is capped at the maximum
	InitialReconnectDelayMs int
	MaxReconnectDelayMs     int

	// TimeoutMs is the default per-request timeout (0 = wait forever)
	TimeoutMs int

	// QueueCapacity limits the outbound queue while disconnected (0 = unbounded)
	QueueCapacity int

	// Physical connection settings
	DialTimeoutMs  int
	WriteTimeoutMs int

	// SubscriberBuffer is the channel capacity of subject subscriptions
	SubscriberBuffer int

	Transport TransportConfig
}

// DefaultClientConfig returns a client configuration with the default values
func DefaultClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:                endpoint,
		InitialReconnectDelayMs: DefaultInitialReconnectDelayMs,
		MaxReconnectDelayMs:     DefaultMaxReconnectDelayMs,
		DialTimeoutMs:           DefaultDialTimeoutMs,
		WriteTimeoutMs:          DefaultWriteTimeoutMs,
		SubscriberBuffer:        DefaultSubscriberBuffer,
		Transport: TransportConfig{
			TCPConf: TCPConf{TCPNoDelay: true},
		},
	}
}

// InitialReconnectDelay returns the first backoff delay (default if unset)
func (c *ClientConfig) InitialReconnectDelay() time.Duration {
	return msOrDefault(c.InitialReconnectDelayMs, DefaultInitialReconnectDelayMs)
}

// MaxReconnectDelay returns the backoff cap (default if unset). It is never
// smaller than the initial delay.
func (c *ClientConfig) MaxReconnectDelay() time.Duration {
	maxDelay := msOrDefault(c.MaxReconnectDelayMs, DefaultMaxReconnectDelayMs)
	if initial := c.InitialReconnectDelay(); maxDelay < initial {
		return initial
	}
	return maxDelay
}

// Timeout returns the default request timeout, 0 means none
func (c *ClientConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DialTimeout returns the timeout of a single connection attempt
func (c *ClientConfig) DialTimeout() time.Duration {
	return msOrDefault(c.DialTimeoutMs, DefaultDialTimeoutMs)
}

// WriteTimeout returns the write deadline for a single frame
func (c *ClientConfig) WriteTimeout() time.Duration {
	return msOrDefault(c.WriteTimeoutMs, DefaultWriteTimeoutMs)
}

// SubscriberBufferSize returns the channel capacity of subscriptions
func (c *ClientConfig) SubscriberBufferSize() int {
	if c.SubscriberBuffer <= 0 {
		return DefaultSubscriberBuffer
	}
	return c.SubscriberBuffer
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection, addField := formatHelpers(&sb)

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	if c.TimeoutMs > 0 {
		addField("Timeout", fmt.Sprintf("%d ms", c.TimeoutMs))
	} else {
		addField("Timeout", "none")
	}
	if c.QueueCapacity > 0 {
		addField("Queue Capacity", strconv.Itoa(c.QueueCapacity))
	} else {
		addField("Queue Capacity", "unbounded")
	}
	addField("Subscriber Buffer", strconv.Itoa(c.SubscriberBufferSize()))

	addSection("Reconnect")
	addField("Initial Delay", c.InitialReconnectDelay().String())
	addField("Max Delay", c.MaxReconnectDelay().String())
	addField("Dial Timeout", c.DialTimeout().String())
	addField("Write Timeout", c.WriteTimeout().String())

	addSection("Socket")
	addTransportFields(addField, c.Transport)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the peer server
type ServerConfig struct {
	// Endpoint is the listen address (e.g. 0.0.0.0:8080)
	Endpoint string

	// Path is the websocket upgrade path (ws transport only)
	Path string

	// MetricsPath exposes the prometheus metrics (ws transport only, empty = disabled)
	MetricsPath string

	// TimeoutSecond is the handler and write timeout (0 = none)
	TimeoutSecond int64

	// Logging configuration
	LogLevel string

	Transport TransportConfig
}

// DefaultServerConfig returns a server configuration with the default values
func DefaultServerConfig(endpoint string) ServerConfig {
	return ServerConfig{
		Endpoint:      endpoint,
		Path:          "/ws",
		MetricsPath:   "/metrics",
		TimeoutSecond: 5,
		LogLevel:      "info",
		Transport: TransportConfig{
			TCPConf: TCPConf{TCPNoDelay: true},
		},
	}
}

// Timeout returns the handler timeout, 0 means none
func (c *ServerConfig) Timeout() time.Duration {
	if c.TimeoutSecond <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection, addField := formatHelpers(&sb)

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Path", c.Path)
	addField("Metrics Path", c.MetricsPath)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Socket")
	addTransportFields(addField, c.Transport)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func msOrDefault(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

// formatHelpers creates helper functions for consistent formatting
func formatHelpers(sb *strings.Builder) (addSection func(string), addField func(string, string)) {
	addSection = func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField = func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

func addTransportFields(addField func(string, string), t TransportConfig) {
	addField("Write Buffer", fmt.Sprintf("%d bytes", t.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", t.ReadBufferSize))
	addField("TCP NoDelay", strconv.FormatBool(t.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", t.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", t.TCPLingerSec))
}
