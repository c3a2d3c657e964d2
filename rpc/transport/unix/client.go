package unix

import (
	"context"
	"net"

	"github.com/ValentinKolb/rws/lib/reachability"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/ValentinKolb/rws/rpc/transport/base"
	"github.com/ValentinKolb/rws/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/unix")

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string, config common.ClientConfig) (transport.IConn, error) {
	dialer := net.Dialer{Timeout: config.DialTimeout()}
	conn, err := dialer.DialContext(ctx, "unix", endpoint)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("Connected to %s", endpoint)
	return tcp.NewLineConn(conn, config.Transport.ReadBufferSize, config.WriteTimeout()), nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new reconnecting Unix socket client transport.
// The endpoint is the path of the socket file.
func NewUnixClientTransport(config common.ClientConfig, reach reachability.IReachability) transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{}, config, reach)
}
