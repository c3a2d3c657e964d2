package ws

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ValentinKolb/rws/lib/reachability"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/ValentinKolb/rws/rpc/transport/base"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/ws")

// clientConnector implements the IClientConnector interface for websockets
type clientConnector struct {
	header http.Header
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "ws"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string, config common.ClientConfig) (transport.IConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.DialTimeout(),
		ReadBufferSize:   config.Transport.ReadBufferSize,
		WriteBufferSize:  config.Transport.WriteBufferSize,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s failed (%s): %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	Logger.Debugf("Websocket handshake with %s completed", endpoint)
	return newConn(conn, config.WriteTimeout()), nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewWSClientTransport creates a new reconnecting websocket client transport.
// header is sent with every handshake and may be nil.
func NewWSClientTransport(config common.ClientConfig, reach reachability.IReachability, header http.Header) transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{header: header}, config, reach)
}
