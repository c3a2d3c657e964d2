package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/rws/cmd/msg"
	"github.com/ValentinKolb/rws/cmd/serve"
	"github.com/ValentinKolb/rws/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "rws",
		Short: "reconnecting websocket rpc",
		Long: fmt.Sprintf(`rws (v%s)

A request/response and pub/sub layer over a self-healing websocket or
tcp connection, written in Go. Requests sent while disconnected are
queued and delivered once the connection is back.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rws",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rws v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	for _, c := range msg.Commands {
		RootCmd.AddCommand(c)
	}
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gojson)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "ws", util.WrapString("transport to use (ws, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
