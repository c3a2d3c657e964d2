package msg

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/rws/cmd/util"
	"github.com/ValentinKolb/rws/rpc/client"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.RPCClient
	closeFn   = func() {}

	// Commands are the client commands, they are added to the root command
	Commands = []*cobra.Command{sendCmd, publishCmd, listenCmd, perfTestCmd}
)

func init() {
	for _, c := range Commands {
		util.SetupRPCClientFlags(c)
		c.PersistentPreRunE = setupClient
		c.PersistentPostRun = func(*cobra.Command, []string) { closeFn() }
	}
}

// setupClient initializes the RPC client
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	c, closeClient, err := util.NewClient()
	if err != nil {
		return err
	}
	rpcClient, closeFn = c, closeClient
	return nil
}

// signalContext is canceled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// waitConnected blocks until the transport is Connected
func waitConnected(ctx context.Context, timeout time.Duration) error {
	states := rpcClient.Transport().SubscribeState()
	defer states.Unsubscribe()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}
	for {
		select {
		case state, ok := <-states.C():
			if !ok {
				return client.ErrDestroyed
			}
			if state == common.StateConnected {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("not connected after %s (state %s)", timeout, rpcClient.Transport().State())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
