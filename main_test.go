package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/go-i2p/go-onion/lib/config"
	"github.com/go-i2p/go-onion/lib/network"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		config.CfgFile = ""
	})

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  forward_timeout: 3s\n"), 0o600))
	return path
}

func TestNetworkCommand(t *testing.T) {
	path := writeConfig(t)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "network", "--relays", "4", "--clients", "2", "--message", "hello"})
	require.NoError(t, cmd.Execute())

	var snap network.Snapshot
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, "directory", snap.Directory.Role)
	require.Len(t, snap.Relays, 4)
	require.Len(t, snap.Clients, 2)
	assert.Equal(t, "hello", snap.Clients[0].LastSent)
	assert.Equal(t, "hello", snap.Clients[1].LastReceived)
	assert.Len(t, snap.Clients[0].LastCircuit, 3)
}

func TestNetworkCommandInsufficientRelays(t *testing.T) {
	path := writeConfig(t)

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "network", "--relays", "2", "--message", "hello"})
	err := cmd.Execute()
	assert.ErrorIs(t, err, protocol.ErrInsufficientNodes)
}

func TestQueryNodeRoles(t *testing.T) {
	n, err := network.Start(context.Background(), network.Config{
		Relays:         3,
		Clients:        2,
		PathLength:     3,
		ForwardTimeout: 2 * time.Second,
		Server:         rpc.DefaultServerConfig(),
	})
	require.NoError(t, err)
	defer n.Close()
	ctx := context.Background()
	require.NoError(t, n.Send(ctx, 1, 2, "hi"))

	callerFor := func(endpoint string) *rpc.Caller {
		return rpc.NewCaller(rpc.EndpointURL(endpoint), 2*time.Second, protocol.ErrNextHopUnreachable)
	}

	dir, err := queryNode(ctx, callerFor(n.Directory().Endpoint()))
	require.NoError(t, err)
	assert.Equal(t, "directory", dir.Status.Role)
	assert.Contains(t, dir.Status.Methods, protocol.MethodRegisterNode)
	assert.Len(t, dir.Nodes, 3)

	sender, err := queryNode(ctx, callerFor(n.Client(1).Address().Endpoint()))
	require.NoError(t, err)
	assert.Equal(t, "client", sender.Status.Role)
	assert.Contains(t, sender.Status.Methods, protocol.MethodSendMessage)
	require.NotNil(t, sender.LastSent)
	assert.Equal(t, "hi", *sender.LastSent)
	assert.Nil(t, sender.LastReceived)
	assert.Len(t, sender.LastCircuit, 3)

	exitID := sender.LastCircuit[2]
	exit, err := queryNode(ctx, callerFor(n.Relay(exitID).Address().Endpoint()))
	require.NoError(t, err)
	assert.Equal(t, "relay", exit.Status.Role)
	require.NotNil(t, exit.LastDecryptedBytes)
	assert.Equal(t, 2, *exit.LastDecryptedBytes)
	require.NotNil(t, exit.LastDestination)
	assert.Equal(t, n.Client(2).Address().String(), *exit.LastDestination)

	var out bytes.Buffer
	require.NoError(t, writeYAML(&out, exit))
	assert.Contains(t, out.String(), "role: relay")
	assert.Contains(t, out.String(), "last_decrypted_bytes: 2")
}

func TestExplainSendError(t *testing.T) {
	err := explainSendError("127.0.0.1:3001", oops.Wrapf(protocol.ErrInsufficientNodes, "select circuit"))
	assert.ErrorIs(t, err, protocol.ErrInsufficientNodes)
	assert.Contains(t, err.Error(), "through the directory")

	err = explainSendError("127.0.0.1:3001", protocol.ErrValidation)
	assert.ErrorIs(t, err, protocol.ErrValidation)
	assert.Contains(t, err.Error(), "rejected the request")

	err = explainSendError("127.0.0.1:3001", protocol.ErrNextHopUnreachable)
	assert.Contains(t, err.Error(), "entry relay")

	plain := errors.New("boom")
	assert.Equal(t, plain, explainSendError("127.0.0.1:3001", plain))
}

func TestSendCommandReportsDirectoryError(t *testing.T) {
	n, err := network.Start(context.Background(), network.Config{
		Relays:         2,
		Clients:        1,
		PathLength:     3,
		ForwardTimeout: 2 * time.Second,
		Server:         rpc.DefaultServerConfig(),
	})
	require.NoError(t, err)
	defer n.Close()

	path := writeConfig(t)
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	via := n.Client(1).Address().Endpoint()
	cmd.SetArgs([]string{"--config", path, "send", "--via", via, "--dest", "1", "hello"})
	err = cmd.Execute()
	assert.ErrorIs(t, err, protocol.ErrInsufficientNodes)
	assert.Contains(t, err.Error(), "through the directory")
}

func TestReloadHandlerAppliesRateLimit(t *testing.T) {
	path := writeConfig(t)
	config.CfgFile = path
	require.NoError(t, config.InitConfig())

	n, err := network.Start(context.Background(), network.Config{
		Relays:         3,
		Clients:        1,
		PathLength:     3,
		ForwardTimeout: 2 * time.Second,
		Server:         rpc.DefaultServerConfig(),
	})
	require.NoError(t, err)
	defer n.Close()

	applied := 0
	reload := reloadHandler(func(cfg config.ConfigDefaults) {
		applied++
		n.SetRateLimit(cfg.Relay.RateLimit, cfg.Relay.RateBurst)
	})

	require.NoError(t, os.WriteFile(path, []byte("relay:\n  rate_limit: 0.001\n  rate_burst: 1\n"), 0o600))
	reload()
	require.Equal(t, 1, applied)

	r := n.Relay(1)
	assert.ErrorIs(t, r.Deliver(context.Background(), []byte{1}), protocol.ErrCrypto)
	assert.ErrorIs(t, r.Deliver(context.Background(), []byte{2}), protocol.ErrRateLimited)

	require.NoError(t, os.WriteFile(path, []byte("protocol:\n  path_length: 0\n"), 0o600))
	reload()
	assert.Equal(t, 1, applied, "an invalid file is not applied")
}
