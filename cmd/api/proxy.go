package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lorrc/taskboard-backend/internal/adapters/secondary/zmqbus"
	"github.com/lorrc/taskboard-backend/internal/config"
)

func busProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bus-proxy",
		Short: "Run the ZeroMQ proxy that links serve instances",
		Long: `Every serve instance with BUS_DRIVER=zmq publishes to the proxy's XSUB
endpoint and subscribes to its XPUB endpoint, so an event published on one
instance reaches the sockets connected to all of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			xsub, _ := cmd.Flags().GetString("xsub")
			xpub, _ := cmd.Flags().GetString("xpub")
			if xsub == "" {
				xsub = bindAddr(cfg.Bus.PubAddr)
			}
			if xpub == "" {
				xpub = bindAddr(cfg.Bus.SubAddr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return zmqbus.RunProxy(ctx, xsub, xpub, newLogger(cfg))
		},
	}

	cmd.Flags().String("xsub", "", "Bind address for publishers (defaults to BUS_PUB_ADDR)")
	cmd.Flags().String("xpub", "", "Bind address for subscribers (defaults to BUS_SUB_ADDR)")
	return cmd
}

// bindAddr turns a tcp connect endpoint into one that binds every interface.
func bindAddr(endpoint string) string {
	rest, ok := strings.CutPrefix(endpoint, "tcp://")
	if !ok {
		return endpoint
	}
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return endpoint
	}
	return "tcp://*" + rest[i:]
}
