// Package probe waits for a woken device to become reachable.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tobiasge/wakerelay/internal/models"
)

// Service defines the interface for post-wake reachability polling.
type Service interface {
	Wait(ctx context.Context, cfg models.ProbeConfig) *models.ProbeResult
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the probe Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
}

// New creates a new probe service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// NewWithClient creates a new probe service with a custom HTTP client (for
// testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient) *Impl {
	return &Impl{httpClient: httpClient, logger: logger}
}

// Wait polls cfg.URL until any HTTP response arrives or the timeout
// elapses, then holds for the stabilize wait. Errors are stored in the
// result rather than returned.
func (s *Impl) Wait(ctx context.Context, cfg models.ProbeConfig) *models.ProbeResult {
	result := &models.ProbeResult{}
	start := time.Now()

	s.logger.Info().
		Str("url", cfg.URL).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for device to become reachable")

	if err := s.waitForTarget(ctx, cfg); err != nil {
		result.WaitDuration = time.Since(start)
		result.Error = err
		return result
	}

	if cfg.StabilizeWait > 0 {
		s.logger.Debug().
			Str("wait", cfg.StabilizeWait.Round(time.Millisecond).String()).
			Msg("waiting for device to stabilize")
		select {
		case <-ctx.Done():
			result.WaitDuration = time.Since(start)
			result.Error = ctx.Err()
			return result
		case <-time.After(cfg.StabilizeWait):
		}
	}

	result.TargetReady = true
	result.WaitDuration = time.Since(start)

	s.logger.Info().
		Dur("duration", result.WaitDuration).
		Msg("device is reachable")

	return result
}

func (s *Impl) waitForTarget(ctx context.Context, cfg models.ProbeConfig) error {
	deadline := time.Now().Add(cfg.Timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for device at %s", cfg.URL)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			// Any response means the device is up.
			return nil
		}

		s.logger.Debug().Err(err).Msg("device not reachable yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
	}
}
