package msg

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/rws/cmd/util"
	"github.com/ValentinKolb/rws/rpc/client"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	sendCmd = &cobra.Command{
		Use:   "send [subject] [json]",
		Short: "Sends a request and prints the response",
		Long:  "Sends a request and prints the data of the response. An error response is printed to stderr and the command exits with a non-zero status.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := util.ParseData(argOrEmpty(args, 1))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			call, err := rpcClient.Send(args[0], data)
			if err != nil {
				return err
			}
			res, err := call.Wait(ctx)
			var remote *client.RemoteError
			if errors.As(err, &remote) {
				return fmt.Errorf("%s", remote.Text)
			}
			if err != nil {
				return err
			}
			fmt.Println(string(res))
			return nil
		},
	}
	publishCmd = &cobra.Command{
		Use:   "publish [subject] [json]",
		Short: "Sends a message without waiting for a response",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := util.ParseData(argOrEmpty(args, 1))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			// a queued message would be lost on exit
			timeout := time.Duration(viper.GetInt("timeout")) * time.Millisecond
			if err := waitConnected(ctx, timeout); err != nil {
				return err
			}
			if err := rpcClient.Publish(args[0], data); err != nil {
				return err
			}
			fmt.Println("published successfully")
			return nil
		},
	}
	listenCmd = &cobra.Command{
		Use:   "listen [subject...]",
		Short: "Prints inbound messages and connection state changes",
		Long:  "Prints inbound envelopes of the given subjects (all inbound frames if no subject is given) and every connection state change until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			states := rpcClient.Transport().SubscribeState()
			defer states.Unsubscribe()

			envelopes := make(chan common.Envelope)
			for _, subject := range args {
				sub := rpcClient.On(subject)
				defer sub.Unsubscribe()
				go func(sub *client.Subscription) {
					for env := range sub.C {
						select {
						case envelopes <- env:
						case <-ctx.Done():
							return
						}
					}
				}(sub)
			}

			var frames <-chan string
			if len(args) == 0 {
				raw := rpcClient.Transport().Messages()
				defer raw.Unsubscribe()
				frames = raw.C()
			}

			for {
				select {
				case state, ok := <-states.C():
					if !ok {
						return nil
					}
					fmt.Printf("%s  [state] %s\n", time.Now().Format("15:04:05.000"), state)
				case env := <-envelopes:
					fmt.Println(util.FormatEnvelope(env))
				case frame, ok := <-frames:
					if !ok {
						return nil
					}
					fmt.Printf("%s  %s\n", time.Now().Format("15:04:05.000"), frame)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
)

func argOrEmpty(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
