package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

func startTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := NewNode(Config{
		Listen:  "127.0.0.1:0",
		Suite:   crypto.SuiteX25519,
		Server:  rpc.DefaultServerConfig(),
		Metrics: true,
	})
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestRemoteRoundTrip(t *testing.T) {
	n := startTestNode(t)
	remote := NewRemote(n.Endpoint(), 2*time.Second)
	ctx := context.Background()

	pub, _, err := crypto.X25519Provider{}.GenerateKeyPair()
	require.NoError(t, err)
	key := crypto.ExportKey(pub)
	addr := mustAddress("127.0.0.1:4001")

	require.NoError(t, remote.RegisterNode(ctx, 1, key, addr))
	err = remote.RegisterNode(ctx, 1, key, addr)
	assert.ErrorIs(t, err, protocol.ErrDuplicateNode)

	nodes, err := remote.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, protocol.NodeRecord{NodeID: 1, PublicKey: key, Address: addr.String()}, nodes[0])

	userAddr := mustAddress("127.0.0.1:3002")
	require.NoError(t, remote.RegisterUser(ctx, 2, userAddr))
	rec, err := remote.LookupUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, userAddr.String(), rec.Address)

	_, err = remote.LookupUser(ctx, 3)
	assert.ErrorIs(t, err, protocol.ErrUnknownDestination)
}

func TestRemoteValidationCrossesHop(t *testing.T) {
	n := startTestNode(t)
	remote := NewRemote(n.Endpoint(), 2*time.Second)

	err := remote.RegisterNode(context.Background(), 0, "", mustAddress("127.0.0.1:4001"))
	assert.ErrorIs(t, err, protocol.ErrValidation)
}

func TestRemoteUnreachable(t *testing.T) {
	n := startTestNode(t)
	endpoint := n.Endpoint()
	require.NoError(t, n.Close())

	remote := NewRemote(endpoint, time.Second)
	_, err := remote.Nodes(context.Background())
	assert.ErrorIs(t, err, protocol.ErrDirectoryUnreachable)
}

func TestNodeStatus(t *testing.T) {
	n := startTestNode(t)

	caller := rpc.NewCaller(rpc.EndpointURL(n.Endpoint()), time.Second, protocol.ErrDirectoryUnreachable)
	var st protocol.Status
	require.NoError(t, caller.Call(context.Background(), protocol.MethodStatus, nil, &st))
	assert.Equal(t, "directory", st.Role)
	assert.Equal(t, "serving", st.State)
	assert.Equal(t, crypto.SuiteX25519, st.Suite)
	assert.Equal(t, n.Address().String(), st.Address)
}

func TestLocalRegistry(t *testing.T) {
	d, p := newTestDirectory(t)
	reg := Local{Dir: d}
	ctx := context.Background()

	require.NoError(t, reg.RegisterNode(ctx, 1, exportedKey(t, p), mustAddress("127.0.0.1:4001")))
	nodes, err := reg.Nodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	require.NoError(t, reg.RegisterUser(ctx, 1, mustAddress("127.0.0.1:3001")))
	_, err = reg.LookupUser(ctx, 1)
	assert.NoError(t, err)
}

func TestNewNodeUnknownSuite(t *testing.T) {
	_, err := NewNode(Config{Listen: "127.0.0.1:0", Suite: "nope"})
	assert.ErrorIs(t, err, crypto.ErrUnknownSuite)
}
