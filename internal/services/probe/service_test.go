package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasge/wakerelay/internal/models"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
	calls  int
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.calls++
	return m.doFunc(req)
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
	}
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testProbeConfig() models.ProbeConfig {
	return models.ProbeConfig{
		URL:          "http://192.168.1.50:8080",
		Timeout:      time.Second,
		PollInterval: 10 * time.Millisecond,
	}
}

func TestWait_ImmediatelyReachable(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return okResponse(), nil
		},
	}
	svc := NewWithClient(testLogger(), client)

	result := svc.Wait(context.Background(), testProbeConfig())

	assert.True(t, result.TargetReady)
	assert.NoError(t, result.Error)
	assert.Equal(t, 1, client.calls)
}

func TestWait_ErrorStatusStillCountsAsUp(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Body:       io.NopCloser(strings.NewReader("starting")),
			}, nil
		},
	}
	svc := NewWithClient(testLogger(), client)

	result := svc.Wait(context.Background(), testProbeConfig())

	assert.True(t, result.TargetReady, "any HTTP response means the device is up")
}

func TestWait_ReachableAfterRetries(t *testing.T) {
	calls := 0
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("connection refused")
			}
			return okResponse(), nil
		},
	}
	svc := NewWithClient(testLogger(), client)

	result := svc.Wait(context.Background(), testProbeConfig())

	assert.True(t, result.TargetReady)
	assert.Equal(t, 3, calls)
}

func TestWait_Timeout(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewWithClient(testLogger(), client)

	cfg := testProbeConfig()
	cfg.Timeout = 50 * time.Millisecond

	result := svc.Wait(context.Background(), cfg)

	assert.False(t, result.TargetReady)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "timeout waiting for device")
	assert.Greater(t, result.WaitDuration, time.Duration(0))
}

func TestWait_Cancelled(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewWithClient(testLogger(), client)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	cfg := testProbeConfig()
	cfg.Timeout = time.Minute

	start := time.Now()
	result := svc.Wait(ctx, cfg)

	assert.False(t, result.TargetReady)
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWait_StabilizeWait(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return okResponse(), nil
		},
	}
	svc := NewWithClient(testLogger(), client)

	cfg := testProbeConfig()
	cfg.StabilizeWait = 50 * time.Millisecond

	result := svc.Wait(context.Background(), cfg)

	assert.True(t, result.TargetReady)
	assert.GreaterOrEqual(t, result.WaitDuration, 50*time.Millisecond)
}

func TestWait_CancelledDuringStabilize(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return okResponse(), nil
		},
	}
	svc := NewWithClient(testLogger(), client)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	cfg := testProbeConfig()
	cfg.StabilizeWait = 10 * time.Second

	start := time.Now()
	result := svc.Wait(ctx, cfg)

	assert.False(t, result.TargetReady)
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
