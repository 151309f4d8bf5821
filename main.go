package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-i2p/logger"
	"github.com/spf13/cobra"

	"github.com/go-i2p/go-onion/lib/config"
	"github.com/go-i2p/go-onion/lib/util"
	"github.com/go-i2p/go-onion/lib/util/signals"
)

var log = logger.GetGoI2PLogger()

// newRootCommand builds the go-onion command tree.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "go-onion",
		Short: "Onion-routing directory, relay and client nodes",
		Long: `go-onion runs the participants of a small onion-routing network.

A directory publishes relay public keys and client addresses. A client picks a
random circuit of distinct relays, wraps its message in one encryption layer
per relay and hands the result to the first relay. Each relay removes its
layer and forwards what is left, so no single relay sees both the sender and
the destination.`,
		Example: `  # Start a directory, three relays and two clients in separate terminals
  go-onion directory
  go-onion relay --id 1 --listen 127.0.0.1:4001
  go-onion relay --id 2 --listen 127.0.0.1:4002
  go-onion relay --id 3 --listen 127.0.0.1:4003
  go-onion client --id 1 --listen 127.0.0.1:3001
  go-onion client --id 2 --listen 127.0.0.1:3002

  # Ask client 1 to send a message to user 2
  go-onion send --via 127.0.0.1:3001 --dest 2 "hello"

  # Inspect any node
  go-onion status 127.0.0.1:4003

  # Or run everything in one process
  go-onion network --relays 5 --clients 2 --from 1 --dest 2 --message hello`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(); err != nil {
				return err
			}
			return config.Validate(config.CurrentConfig())
		},
	}

	cmd.PersistentFlags().StringVar(&config.CfgFile, "config", "",
		"config file (default is $HOME/.go-onion/config.yaml)")

	cmd.AddCommand(
		newDirectoryCommand(),
		newRelayCommand(),
		newClientCommand(),
		newSendCommand(),
		newStatusCommand(),
		newNetworkCommand(),
	)
	return cmd
}

// serveUntilInterrupt keeps the process alive until SIGINT or SIGTERM, then
// closes everything in reverse order.
func serveUntilInterrupt(ctx context.Context, closers ...io.Closer) error {
	for _, c := range closers {
		util.RegisterCloser(c)
	}

	ctx, cancel := signals.InterruptContext(ctx)
	defer cancel()
	go signals.Handle()

	<-ctx.Done()
	signals.StopHandle()
	log.Info("Shutting down")
	return util.CloseAll()
}

// reloadHandler re-reads the config file on SIGHUP and passes it to apply.
// An unreadable or invalid file leaves the running node untouched.
func reloadHandler(apply func(config.ConfigDefaults)) signals.Handler {
	return func() {
		cfg, err := config.Reload()
		if err != nil {
			log.WithFields(logger.Fields{
				"at":     "reloadHandler",
				"reason": err.Error(),
			}).Error("Keeping previous configuration")
			return
		}
		apply(cfg)
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
