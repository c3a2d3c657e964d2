package util

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/rws/lib/reachability"
	"github.com/ValentinKolb/rws/rpc/client"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/serializer"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/ValentinKolb/rws/rpc/transport/tcp"
	"github.com/ValentinKolb/rws/rpc/transport/unix"
	"github.com/ValentinKolb/rws/rpc/transport/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the connection flags of all client commands
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("Address of the peer (default ws://localhost:8080/ws for ws, localhost:8080 for tcp, /tmp/rws.sock for unix)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10000, WrapString("Request timeout in milliseconds (0 = wait forever)"))

	key = "reconnect-initial"
	cmd.PersistentFlags().Int(key, common.DefaultInitialReconnectDelayMs, WrapString("First reconnect delay in milliseconds, doubled after every failed attempt"))

	key = "reconnect-max"
	cmd.PersistentFlags().Int(key, common.DefaultMaxReconnectDelayMs, WrapString("Upper bound of the reconnect delay in milliseconds"))

	key = "queue-capacity"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum number of messages queued while disconnected (0 = unbounded)"))

	key = "dial-timeout"
	cmd.PersistentFlags().Int(key, common.DefaultDialTimeoutMs, WrapString("Timeout of a single connection attempt in milliseconds"))

	key = "reachability-probe"
	cmd.PersistentFlags().String(key, "", WrapString("Optional host:port that is dialed periodically to detect whether the network is online. Reconnects are deferred while it is unreachable"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warning", WrapString("Level at which logs will be output (debug, info, warn, error)"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp)"))
}

// InitConfig loads .env files and binds environment variables (RWS_<FLAG>)
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("rws")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetTransportConfig reads the socket options from viper
func GetTransportConfig() common.TransportConfig {
	return common.TransportConfig{
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() common.ClientConfig {
	endpoint := viper.GetString("endpoint")
	if endpoint == "" {
		endpoint = DefaultEndpoint(viper.GetString("transport"))
	}

	conf := common.DefaultClientConfig(endpoint)
	conf.TimeoutMs = viper.GetInt("timeout")
	conf.InitialReconnectDelayMs = viper.GetInt("reconnect-initial")
	conf.MaxReconnectDelayMs = viper.GetInt("reconnect-max")
	conf.QueueCapacity = viper.GetInt("queue-capacity")
	conf.DialTimeoutMs = viper.GetInt("dial-timeout")
	conf.Transport = GetTransportConfig()
	return conf
}

// DefaultEndpoint returns the client endpoint used if none is configured
func DefaultEndpoint(transportName string) string {
	switch transportName {
	case "tcp":
		return "localhost:8080"
	case "unix":
		return "/tmp/rws.sock"
	default:
		return "ws://localhost:8080/ws"
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.ByName(viper.GetString("serializer"))
}

// GetReachability creates the reachability signal based on configuration.
// The returned close function stops a probe.
func GetReachability() (reachability.IReachability, func()) {
	address := viper.GetString("reachability-probe")
	if address == "" {
		return reachability.NewStatic(true), func() {}
	}
	probe := reachability.NewProbe(address, 0, 0)
	return probe, probe.Close
}

// GetClientTransport creates a client transport based on configuration
func GetClientTransport(config common.ClientConfig, reach reachability.IReachability) (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "ws", "":
		return ws.NewWSClientTransport(config, reach, nil), nil
	case "tcp":
		return tcp.NewTCPClientTransport(config, reach), nil
	case "unix":
		return unix.NewUnixClientTransport(config, reach), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates a server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "ws", "":
		return ws.NewWSServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// NewClient creates a connected (connecting) RPC client from the configuration.
// The returned close function destroys the client.
func NewClient() (*client.RPCClient, func(), error) {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, nil, err
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, nil, err
	}

	config := GetClientConfig()
	reach, stopReach := GetReachability()
	t, err := GetClientTransport(config, reach)
	if err != nil {
		stopReach()
		return nil, nil, err
	}

	c := client.NewRPCClient(config, t, s)
	return c, func() {
		c.Destroy()
		stopReach()
	}, nil
}

// ParseData parses a command line argument as JSON. An empty argument is null.
func ParseData(arg string) (json.RawMessage, error) {
	if strings.TrimSpace(arg) == "" {
		return json.RawMessage("null"), nil
	}
	if !json.Valid([]byte(arg)) {
		return nil, fmt.Errorf("data is not valid JSON: %s", arg)
	}
	return json.RawMessage(arg), nil
}

// FormatEnvelope renders an envelope for terminal output
func FormatEnvelope(env common.Envelope) string {
	ts := time.Now().Format("15:04:05.000")
	if env.HasError() {
		return fmt.Sprintf("%s  %-16s error=%q", ts, env.Subject, env.ErrorText())
	}
	return fmt.Sprintf("%s  %-16s %s", ts, env.Subject, env.Payload())
}
