package instrument

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExport(t *testing.T) {
	m := New("relay", 7)
	m.DeliveryReceived()
	m.DeliveryReceived()
	m.LayerPeeled()
	m.Forwarded()
	m.DeliveryDropped(DropCrypto)
	m.Registration("node", nil)
	m.Registration("node", errors.New("duplicate"))
	m.SetRegistered("node", 3)

	out := scrape(t, m)
	assert.Contains(t, out, `goonion_deliveries_total{id="7",role="relay"} 2`)
	assert.Contains(t, out, `goonion_layers_peeled_total{id="7",role="relay"} 1`)
	assert.Contains(t, out, `goonion_forwards_total{id="7",role="relay"} 1`)
	assert.Contains(t, out, `goonion_deliveries_dropped_total{id="7",reason="crypto",role="relay"} 1`)
	assert.Contains(t, out, `goonion_registrations_total{id="7",kind="node",result="ok",role="relay"} 1`)
	assert.Contains(t, out, `goonion_registrations_total{id="7",kind="node",result="rejected",role="relay"} 1`)
	assert.Contains(t, out, `goonion_registered{id="7",kind="node",role="relay"} 3`)
}

func TestMetricsAreIsolatedPerNode(t *testing.T) {
	a := New("client", 1)
	b := New("client", 2)
	a.MessageSent()

	assert.Contains(t, scrape(t, a), `goonion_messages_sent_total{id="1",role="client"} 1`)
	assert.Contains(t, scrape(t, b), `goonion_messages_sent_total{id="2",role="client"} 0`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DeliveryReceived()
		m.LayerPeeled()
		m.DeliveryDropped(DropInvalid)
		m.Forwarded()
		m.MessageSent()
		m.MessageReceived()
		m.Registration("user", nil)
		m.SetRegistered("user", 1)
	})
	assert.Nil(t, m.Handler())
}
