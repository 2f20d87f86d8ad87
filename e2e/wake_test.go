//go:build e2e

package e2e

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasge/wakerelay/internal/magic"
	"github.com/tobiasge/wakerelay/internal/models"
	"github.com/tobiasge/wakerelay/internal/services/dispatch"
	"github.com/tobiasge/wakerelay/internal/services/relay"
	"github.com/tobiasge/wakerelay/internal/services/relayserver"
)

type recordingLocal struct {
	calls int
	macs  []magic.MAC
	ips   []string
}

func (r *recordingLocal) Dispatch(ctx context.Context, mac magic.MAC, targetIP string) *models.LocalResult {
	r.calls++
	r.macs = append(r.macs, mac)
	r.ips = append(r.ips, targetIP)
	return &models.LocalResult{SuccessCount: 2, TotalAttempts: 2}
}

// startGateway serves the relay gateway router on a loopback listener and
// returns the host/port the client should dial.
func startGateway(t *testing.T, cfg models.ServerConfig) (*recordingLocal, string, int) {
	t.Helper()

	gatewayLocal := &recordingLocal{}
	srv := relayserver.NewWithLocal(zerolog.New(io.Discard), cfg, gatewayLocal)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return gatewayLocal, u.Hostname(), port
}

func TestWakeThroughRelayGateway(t *testing.T) {
	gatewayLocal, host, port := startGateway(t, models.ServerConfig{APIKey: "sekrit"})

	clientLocal := &recordingLocal{}
	client := relay.NewWithClients(
		zerolog.New(io.Discard),
		&http.Client{Timeout: 5 * time.Second},
		&http.Client{Timeout: 5 * time.Second},
		clientLocal,
	)

	target := models.WakeTarget{Name: "nas", IP: "192.168.1.50", MAC: "00:1b:63:84:45:e6"}
	cfg := models.RelayConfig{Enabled: true, Host: host, Port: port, APIKey: "sekrit"}

	result := client.Dispatch(context.Background(), target, cfg)

	assert.True(t, result.Sent)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, 1, result.Attempts)

	require.Equal(t, 1, gatewayLocal.calls, "gateway must deliver the packet locally")
	assert.Equal(t, "00:1B:63:84:45:E6", gatewayLocal.macs[0].String())
	assert.Equal(t, "192.168.1.50", gatewayLocal.ips[0])
	assert.Zero(t, clientLocal.calls, "no fallback on a successful relay")
}

func TestWakeThroughRelayGateway_BadAPIKey(t *testing.T) {
	gatewayLocal, host, port := startGateway(t, models.ServerConfig{APIKey: "sekrit"})

	client := relay.NewWithClients(
		zerolog.New(io.Discard),
		&http.Client{Timeout: 5 * time.Second},
		&http.Client{Timeout: 5 * time.Second},
		&recordingLocal{},
	)

	target := models.WakeTarget{MAC: "00:1B:63:84:45:E6"}
	cfg := models.RelayConfig{Enabled: true, Host: host, Port: port, APIKey: "wrong"}

	result := client.Dispatch(context.Background(), target, cfg)

	assert.False(t, result.Sent)
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
	assert.Equal(t, 1, result.Attempts, "auth failures are terminal, not retried")
	assert.Zero(t, gatewayLocal.calls)
}

func TestWakeThroughOrchestrator(t *testing.T) {
	_, host, port := startGateway(t, models.ServerConfig{})

	logger := zerolog.New(io.Discard)
	client := relay.NewWithClients(
		logger,
		&http.Client{Timeout: 5 * time.Second},
		&http.Client{Timeout: 5 * time.Second},
		&recordingLocal{},
	)
	o := dispatch.NewWithServices(logger, &recordingLocal{}, client, dispatch.NewLog(dispatch.DefaultLogCapacity))

	target := models.WakeTarget{Name: "nas", MAC: "00:1B:63:84:45:E6"}
	relayCfg := &models.RelayConfig{Enabled: true, Host: host, Port: port}

	result := o.SendWake(context.Background(), target, relayCfg)

	assert.True(t, result.Success)
	assert.Equal(t, models.MethodRelay, result.Method)

	entries := o.Log().Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, http.StatusOK, entries[0].StatusCode)
}
