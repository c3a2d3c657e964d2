package tcp

import (
	"context"
	"fmt"
	"net"

	"github.com/ValentinKolb/rws/lib/reachability"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/ValentinKolb/rws/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/tcp")

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string, config common.ClientConfig) (transport.IConn, error) {
	dialer := net.Dialer{Timeout: config.DialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}

	if err := upgradeConnection(conn, config.Transport); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", endpoint, err)
	}

	Logger.Debugf("Connected to %s", endpoint)
	return newConn(conn, config.Transport.ReadBufferSize, config.WriteTimeout()), nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a new reconnecting TCP client transport
func NewTCPClientTransport(config common.ClientConfig, reach reachability.IReachability) transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{}, config, reach)
}
