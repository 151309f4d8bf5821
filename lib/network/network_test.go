package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/relay"
	"github.com/go-i2p/go-onion/lib/rpc"
)

func testConfig(relays, clients int) Config {
	return Config{
		Relays:         relays,
		Clients:        clients,
		Suite:          crypto.SuiteX25519,
		PathLength:     3,
		ForwardTimeout: 2 * time.Second,
		Server:         rpc.DefaultServerConfig(),
		Metrics:        true,
	}
}

func startNetwork(t *testing.T, cfg Config) *Network {
	t.Helper()
	n, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestSendThroughCircuit(t *testing.T) {
	n := startNetwork(t, testConfig(5, 2))
	ctx := context.Background()

	require.NoError(t, n.Send(ctx, 1, 2, "hello"))

	ids, ok := n.Client(1).LastCircuit()
	require.True(t, ok)
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[0], ids[2])
	assert.NotEqual(t, ids[1], ids[2])

	exit := n.Relay(ids[2])
	require.NotNil(t, exit)
	dec, ok := exit.LastReceivedDecrypted()
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), dec)

	dest, ok := exit.LastMessageDestination()
	require.True(t, ok)
	assert.Equal(t, n.Client(2).Address(), dest)
	assert.Len(t, dest.String(), 15)

	// Each hop forwards to the next relay in circuit order.
	for i := 0; i < 2; i++ {
		next, ok := n.Relay(ids[i]).LastMessageDestination()
		require.True(t, ok)
		assert.Equal(t, n.Relay(ids[i+1]).Address(), next, "hop %d", i)
	}

	got, ok := n.Client(2).LastReceivedMessage()
	require.True(t, ok)
	assert.Equal(t, "hello", got)

	sent, ok := n.Client(1).LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "hello", sent)
}

func TestSendInsufficientRelays(t *testing.T) {
	n := startNetwork(t, testConfig(2, 2))

	err := n.Send(context.Background(), 1, 2, "hello")
	assert.ErrorIs(t, err, protocol.ErrInsufficientNodes)

	for id := 1; id <= 2; id++ {
		_, ok := n.Relay(id).LastReceivedEncrypted()
		assert.False(t, ok, "relay %d must not be contacted", id)
	}
	_, ok := n.Client(2).LastReceivedMessage()
	assert.False(t, ok)
}

func TestCorruptedOnionOverRPC(t *testing.T) {
	n := startNetwork(t, testConfig(3, 0))
	r := n.Relay(1)
	caller := rpc.NewCaller(r.Address().URL(), 2*time.Second, protocol.ErrNextHopUnreachable)

	junk := make([]byte, 200)
	err := caller.Call(context.Background(), protocol.MethodDeliver, protocol.DeliverParams{Payload: junk}, nil)
	assert.ErrorIs(t, err, protocol.ErrCrypto)

	enc, ok := r.LastReceivedEncrypted()
	require.True(t, ok)
	assert.Equal(t, junk, enc)
	_, ok = r.LastReceivedDecrypted()
	assert.False(t, ok)
	_, ok = r.LastMessageDestination()
	assert.False(t, ok)
}

func TestSendUnknownDestination(t *testing.T) {
	n := startNetwork(t, testConfig(3, 1))

	err := n.Send(context.Background(), 1, 9, "hello")
	assert.ErrorIs(t, err, protocol.ErrUnknownDestination)
}

func TestSendEntryUnreachable(t *testing.T) {
	n := startNetwork(t, testConfig(3, 2))
	for id := 1; id <= 3; id++ {
		require.NoError(t, n.Relay(id).Close())
	}

	err := n.Send(context.Background(), 1, 2, "hello")
	assert.ErrorIs(t, err, protocol.ErrNextHopUnreachable)
	_, ok := n.Client(1).LastSentMessage()
	assert.False(t, ok)
}

func TestDestinationFailureStaysAtExit(t *testing.T) {
	n := startNetwork(t, testConfig(3, 2))
	require.NoError(t, n.Client(2).Close())

	// The sender only learns that the entry relay accepted the onion.
	require.NoError(t, n.Send(context.Background(), 1, 2, "hello"))

	ids, ok := n.Client(1).LastCircuit()
	require.True(t, ok)
	dec, ok := n.Relay(ids[2]).LastReceivedDecrypted()
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), dec)
	_, ok = n.Client(2).LastReceivedMessage()
	assert.False(t, ok)
}

// silentListener accepts TCP connections and never answers them.
func silentListener(t *testing.T) address.Address {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	addr, err := address.FromEndpoint(l.Addr().String())
	require.NoError(t, err)
	return addr
}

func sawForwardFailure(r *relay.Relay) bool {
	rec := httptest.NewRecorder()
	r.Metrics().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return strings.Contains(rec.Body.String(), `reason="forward_failed"`)
}

func TestSilentDestinationStaysAtExit(t *testing.T) {
	cfg := testConfig(3, 1)
	cfg.ForwardTimeout = time.Second
	n := startNetwork(t, cfg)
	silent := silentListener(t)
	require.NoError(t, n.Directory().Directory().RegisterUser(9, silent.String()))

	start := time.Now()
	require.NoError(t, n.Send(context.Background(), 1, 9, "hello"))
	assert.Less(t, time.Since(start), cfg.ForwardTimeout)

	sent, ok := n.Client(1).LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "hello", sent)
	ids, ok := n.Client(1).LastCircuit()
	require.True(t, ok)
	require.Len(t, ids, 3)

	exit := n.Relay(ids[2])
	assert.Eventually(t, func() bool { return sawForwardFailure(exit) }, 3*time.Second, 50*time.Millisecond)
	for _, id := range ids[:2] {
		assert.False(t, sawForwardFailure(n.Relay(id)), "relay %d saw a failure past the exit", id)
	}
}

func TestSendRSASuite(t *testing.T) {
	cfg := testConfig(3, 2)
	cfg.Suite = crypto.SuiteRSA
	n := startNetwork(t, cfg)

	require.NoError(t, n.Send(context.Background(), 2, 1, "over rsa"))

	got, ok := n.Client(1).LastReceivedMessage()
	require.True(t, ok)
	assert.Equal(t, "over rsa", got)
	assert.Equal(t, crypto.SuiteRSA, n.Directory().Status().Suite)
}

func TestConcurrentSends(t *testing.T) {
	const clients = 4
	n := startNetwork(t, testConfig(5, clients))

	g, ctx := errgroup.WithContext(context.Background())
	for from := 1; from <= clients; from++ {
		to := from%clients + 1
		g.Go(func() error {
			return n.Send(ctx, from, to, fmt.Sprintf("from %d", from))
		})
	}
	require.NoError(t, g.Wait())

	for to := 1; to <= clients; to++ {
		from := (to+clients-2)%clients + 1
		got, ok := n.Client(to).LastReceivedMessage()
		require.True(t, ok, "client %d", to)
		assert.Equal(t, fmt.Sprintf("from %d", from), got)
	}
}

func TestSendFromUnknownClient(t *testing.T) {
	n := startNetwork(t, testConfig(3, 1))
	assert.ErrorIs(t, n.Send(context.Background(), 5, 1, "hi"), protocol.ErrValidation)
}

func TestStartInvalidConfig(t *testing.T) {
	cfg := testConfig(3, 1)
	cfg.Suite = "rot13"
	_, err := Start(context.Background(), cfg)
	assert.ErrorIs(t, err, crypto.ErrUnknownSuite)

	_, err = Start(context.Background(), testConfig(-1, 0))
	assert.ErrorIs(t, err, protocol.ErrValidation)
}

func TestSnapshot(t *testing.T) {
	n := startNetwork(t, testConfig(3, 2))
	require.NoError(t, n.Send(context.Background(), 1, 2, "hello"))

	s := n.Snapshot()
	assert.Equal(t, "directory", s.Directory.Role)
	require.Len(t, s.Relays, 3)
	require.Len(t, s.Clients, 2)

	ids, _ := n.Client(1).LastCircuit()
	exit := s.Relays[ids[2]-1]
	assert.Equal(t, "hello", exit.LastDecrypted)
	assert.Equal(t, n.Client(2).Address().Endpoint(), exit.LastDestination)
	assert.Contains(t, s.Relays[ids[0]-1].LastDecrypted, "bytes>")
	assert.Equal(t, ids, s.Clients[0].LastCircuit)
	assert.Equal(t, "hello", s.Clients[1].LastReceived)

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), "last_received: hello")
}
