package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/rws/cmd/util"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start an rws peer server",
		Long:    `Start an rws peer server answering Ping, Echo, Time and Broadcast. The configuration can be set via command line flags or environment variables. The format of the environment variables is RWS_<flag> (e.g. RWS_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "endpoint"
	ServeCmd.Flags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen"))

	key = "path"
	ServeCmd.Flags().String(key, "/ws", cmdUtil.WrapString("HTTP path of the websocket endpoint (only for ws)"))

	key = "metrics-path"
	ServeCmd.Flags().String(key, "/metrics", cmdUtil.WrapString("HTTP path of the prometheus metrics, empty to disable (only for ws)"))

	key = "timeout"
	ServeCmd.Flags().Int64(key, 5, cmdUtil.WrapString("Timeout of a single handler in seconds"))

	key = "log-level"
	ServeCmd.Flags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "transport-write-buffer"
	ServeCmd.Flags().Int(key, 64, cmdUtil.WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	ServeCmd.Flags().Int(key, 64, cmdUtil.WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	ServeCmd.Flags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for accepted connections (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.Flags().Int(key, 0, cmdUtil.WrapString("The keepalive interval of accepted connections (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	ServeCmd.Flags().Int(key, 0, cmdUtil.WrapString("The linger time of accepted connections (in seconds, only for tcp)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Path = viper.GetString("path")
	serveCmdConfig.MetricsPath = viper.GetString("metrics-path")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = cmdUtil.GetTransportConfig()

	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the peer server and stops it on SIGINT/SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)
	server.RegisterBuiltins(serv)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			_ = serv.Close()
		}
	}()

	return serv.Serve()
}
