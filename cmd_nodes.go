package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-i2p/go-onion/lib/client"
	"github.com/go-i2p/go-onion/lib/config"
	"github.com/go-i2p/go-onion/lib/directory"
	"github.com/go-i2p/go-onion/lib/relay"
	"github.com/go-i2p/go-onion/lib/util/signals"
)

func newDirectoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Run the node directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CurrentConfig()
			node, err := directory.NewNode(directory.Config{
				Listen:  cfg.Directory.Address,
				Suite:   cfg.Crypto.Suite,
				Server:  cfg.Transport.ServerConfig(),
				Metrics: cfg.Metrics.Enabled,
			})
			if err != nil {
				return err
			}
			if err := node.Start(cmd.Context()); err != nil {
				return err
			}
			return serveUntilInterrupt(cmd.Context(), node)
		},
	}
	cmd.Flags().String("listen", "", "directory listen address (overrides directory.address)")
	cmd.PreRunE = bindFlags(map[string]string{"directory.address": "listen"})
	return cmd
}

func newRelayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a relay that peels one layer per message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CurrentConfig()
			r, err := relay.New(relay.Config{
				NodeID:         cfg.Relay.NodeID,
				Listen:         cfg.Relay.Address,
				Suite:          cfg.Crypto.Suite,
				ForwardTimeout: cfg.Transport.ForwardTimeout,
				RateLimit:      cfg.Relay.RateLimit,
				RateBurst:      cfg.Relay.RateBurst,
				Server:         cfg.Transport.ServerConfig(),
				Metrics:        cfg.Metrics.Enabled,
			}, directory.NewRemote(cfg.Directory.Address, cfg.Transport.ForwardTimeout))
			if err != nil {
				return err
			}
			if err := r.Start(cmd.Context()); err != nil {
				return err
			}
			signals.RegisterReloadHandler(reloadHandler(func(cfg config.ConfigDefaults) {
				r.SetRateLimit(cfg.Relay.RateLimit, cfg.Relay.RateBurst)
			}))
			return serveUntilInterrupt(cmd.Context(), r)
		},
	}
	cmd.Flags().Int("id", 0, "relay node id (overrides relay.node_id)")
	cmd.Flags().String("listen", "", "relay listen address (overrides relay.address)")
	cmd.Flags().String("directory", "", "directory address (overrides directory.address)")
	cmd.PreRunE = bindFlags(map[string]string{
		"relay.node_id":     "id",
		"relay.address":     "listen",
		"directory.address": "directory",
	})
	return cmd
}

func newClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run a client that sends and receives messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CurrentConfig()
			c, err := client.New(client.Config{
				UserID:         cfg.Client.UserID,
				Listen:         cfg.Client.Address,
				Suite:          cfg.Crypto.Suite,
				PathLength:     cfg.Protocol.PathLength,
				ForwardTimeout: cfg.Transport.ForwardTimeout,
				Server:         cfg.Transport.ServerConfig(),
				Metrics:        cfg.Metrics.Enabled,
			}, directory.NewRemote(cfg.Directory.Address, cfg.Transport.ForwardTimeout))
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			return serveUntilInterrupt(cmd.Context(), c)
		},
	}
	cmd.Flags().Int("id", 0, "user id (overrides client.user_id)")
	cmd.Flags().String("listen", "", "client listen address (overrides client.address)")
	cmd.Flags().String("directory", "", "directory address (overrides directory.address)")
	cmd.PreRunE = bindFlags(map[string]string{
		"client.user_id":    "id",
		"client.address":    "listen",
		"directory.address": "directory",
	})
	return cmd
}

// bindFlags returns a PreRunE that lets set flags override config keys.
// Binding happens per command because several commands share a key.
func bindFlags(keys map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for key, flag := range keys {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return oops.Wrapf(err, "bind --%s", flag)
			}
		}
		return config.Validate(config.CurrentConfig())
	}
}
