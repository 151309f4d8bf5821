package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-i2p/go-onion/lib/config"
	"github.com/go-i2p/go-onion/lib/network"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
	"github.com/go-i2p/go-onion/lib/util/signals"
)

func newSendCommand() *cobra.Command {
	var via string
	var dest int

	cmd := &cobra.Command{
		Use:   "send MESSAGE",
		Short: "Ask a running client to send a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CurrentConfig()
			if via == "" {
				via = cfg.Client.Address
			}
			caller := rpc.NewCaller(rpc.EndpointURL(via), cfg.Transport.ForwardTimeout, protocol.ErrNextHopUnreachable)

			var accepted protocol.Accepted
			params := protocol.SendMessageParams{
				Message:           strings.Join(args, " "),
				DestinationUserID: dest,
			}
			if err := caller.Call(cmd.Context(), protocol.MethodSendMessage, params, &accepted); err != nil {
				return explainSendError(via, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), accepted.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&via, "via", "", "sending client address (default client.address)")
	cmd.Flags().IntVar(&dest, "dest", 0, "destination user id")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

// explainSendError says which side of a failed send to look at: the
// directory, the request itself, or the circuit.
func explainSendError(via string, err error) error {
	switch {
	case protocol.IsDirectoryError(err):
		return oops.Wrapf(err, "client %s could not route the message through the directory", via)
	case protocol.IsValidationError(err):
		return oops.Wrapf(err, "client %s rejected the request", via)
	case errors.Is(err, protocol.ErrNextHopUnreachable):
		return oops.Wrapf(err, "client %s could not hand the message to its entry relay", via)
	}
	return err
}

// nodeReport is the YAML document printed by the status command.
type nodeReport struct {
	Status protocol.Status `yaml:"status"`

	Nodes []protocol.NodeRecord `yaml:"nodes,omitempty"`

	LastEncryptedBytes *int    `yaml:"last_encrypted_bytes,omitempty"`
	LastDecryptedBytes *int    `yaml:"last_decrypted_bytes,omitempty"`
	LastDestination    *string `yaml:"last_destination,omitempty"`

	LastSent     *string `yaml:"last_sent,omitempty"`
	LastReceived *string `yaml:"last_received,omitempty"`
	LastCircuit  []int   `yaml:"last_circuit,omitempty"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status ENDPOINT",
		Short: "Print a node's status and diagnostics as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CurrentConfig()
			caller := rpc.NewCaller(rpc.EndpointURL(args[0]), cfg.Transport.ForwardTimeout, protocol.ErrNextHopUnreachable)
			report, err := queryNode(cmd.Context(), caller)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), report)
		},
	}
}

// queryNode asks a node for its status, then for the diagnostics its role
// exposes.
func queryNode(ctx context.Context, caller *rpc.Caller) (nodeReport, error) {
	var r nodeReport
	if err := caller.Call(ctx, protocol.MethodStatus, nil, &r.Status); err != nil {
		return r, err
	}

	switch r.Status.Role {
	case "directory":
		var reg protocol.NodeRegistry
		if err := caller.Call(ctx, protocol.MethodGetNodeRegistry, nil, &reg); err != nil {
			return r, err
		}
		r.Nodes = reg.Nodes

	case "relay":
		var enc, dec protocol.BytesResult
		var dest protocol.StringResult
		if err := caller.Call(ctx, protocol.MethodGetLastReceivedEncryptedMessage, nil, &enc); err != nil {
			return r, err
		}
		if err := caller.Call(ctx, protocol.MethodGetLastReceivedDecryptedMessage, nil, &dec); err != nil {
			return r, err
		}
		if err := caller.Call(ctx, protocol.MethodGetLastMessageDestination, nil, &dest); err != nil {
			return r, err
		}
		if enc.Result != nil {
			n := len(enc.Result)
			r.LastEncryptedBytes = &n
		}
		if dec.Result != nil {
			n := len(dec.Result)
			r.LastDecryptedBytes = &n
		}
		r.LastDestination = dest.Result

	case "client":
		var sent, received protocol.StringResult
		var circuit protocol.CircuitResult
		if err := caller.Call(ctx, protocol.MethodGetLastSentMessage, nil, &sent); err != nil {
			return r, err
		}
		if err := caller.Call(ctx, protocol.MethodGetLastReceivedMessage, nil, &received); err != nil {
			return r, err
		}
		if err := caller.Call(ctx, protocol.MethodGetLastCircuit, nil, &circuit); err != nil {
			return r, err
		}
		r.LastSent, r.LastReceived, r.LastCircuit = sent.Result, received.Result, circuit.Result

	default:
		return r, oops.Errorf("node reported unknown role %q", r.Status.Role)
	}
	return r, nil
}

func newNetworkCommand() *cobra.Command {
	var (
		relays, clients int
		from, dest      int
		message         string
		hold            bool
	)

	cmd := &cobra.Command{
		Use:   "network",
		Short: "Run a directory, relays and clients in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CurrentConfig()
			n, err := network.Start(cmd.Context(), network.Config{
				Relays:         relays,
				Clients:        clients,
				Suite:          cfg.Crypto.Suite,
				PathLength:     cfg.Protocol.PathLength,
				ForwardTimeout: cfg.Transport.ForwardTimeout,
				RateLimit:      cfg.Relay.RateLimit,
				RateBurst:      cfg.Relay.RateBurst,
				Server:         cfg.Transport.ServerConfig(),
				Metrics:        cfg.Metrics.Enabled,
			})
			if err != nil {
				return err
			}

			if message != "" {
				if err := n.Send(cmd.Context(), from, dest, message); err != nil {
					_ = n.Close()
					return err
				}
			}
			if err := writeYAML(cmd.OutOrStdout(), n.Snapshot()); err != nil {
				_ = n.Close()
				return err
			}

			if hold {
				signals.RegisterReloadHandler(reloadHandler(func(cfg config.ConfigDefaults) {
					n.SetRateLimit(cfg.Relay.RateLimit, cfg.Relay.RateBurst)
				}))
				return serveUntilInterrupt(cmd.Context(), n)
			}
			return n.Close()
		},
	}
	cmd.Flags().IntVar(&relays, "relays", 5, "number of relays")
	cmd.Flags().IntVar(&clients, "clients", 2, "number of clients")
	cmd.Flags().IntVar(&from, "from", 1, "sending user id")
	cmd.Flags().IntVar(&dest, "dest", 2, "destination user id")
	cmd.Flags().StringVar(&message, "message", "", "message to send once the network is up")
	cmd.Flags().BoolVar(&hold, "hold", false, "keep the network running until interrupted")
	return cmd
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return oops.Wrapf(err, "encode YAML")
	}
	return enc.Close()
}
