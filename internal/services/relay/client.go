// Package relay submits wake requests to a remote relay gateway.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tobiasge/wakerelay/internal/magic"
	"github.com/tobiasge/wakerelay/internal/models"
	"github.com/tobiasge/wakerelay/internal/services/local"
)

const (
	healthPath = "/health"
	wakePath   = "/wake"

	// Per-attempt timeout contract. The request context bounds the whole
	// exchange, the client timeout bounds connection setup and body reads.
	healthRequestTimeout = 8 * time.Second
	healthClientTimeout  = 15 * time.Second
	wakeRequestTimeout   = 10 * time.Second
	wakeClientTimeout    = 25 * time.Second

	// Retry policy: up to maxAttempts wake POSTs, exponential backoff with
	// additive jitter between them.
	maxAttempts     = 4
	baseDelay       = 800 * time.Millisecond
	maxDelay        = 15 * time.Second
	rateLimitFactor = 3.0
	jitterMin       = 0.10
	jitterMax       = 0.40
)

// Service defines the interface for relay wake dispatch.
type Service interface {
	Dispatch(ctx context.Context, target models.WakeTarget, cfg models.RelayConfig) *models.RelayResult
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the relay Service interface.
type Impl struct {
	healthClient HTTPClient
	wakeClient   HTTPClient
	localSvc     local.Service
	logger       zerolog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64 // uniform in [0,1)
}

// New creates a relay client with real HTTP clients and the real local
// delivery service as fallback.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		healthClient: &http.Client{Timeout: healthClientTimeout},
		wakeClient:   &http.Client{Timeout: wakeClientTimeout},
		localSvc:     local.New(logger),
		logger:       logger,
		sleep:        ctxSleep,
		jitter:       rand.Float64,
	}
}

// NewWithClients creates a relay client with custom collaborators (for
// testing).
func NewWithClients(logger zerolog.Logger, healthClient, wakeClient HTTPClient, localSvc local.Service) *Impl {
	return &Impl{
		healthClient: healthClient,
		wakeClient:   wakeClient,
		localSvc:     localSvc,
		logger:       logger,
		sleep:        ctxSleep,
		jitter:       rand.Float64,
	}
}

type wakeRequest struct {
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
	Name string `json:"name"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Dispatch confirms relay liveness, then posts the wake request with
// retries. On health-check failure or exhausted retries it runs exactly one
// local fallback pass when the config asks for it. Errors stay inside the
// result; this boundary never raises.
func (s *Impl) Dispatch(ctx context.Context, target models.WakeTarget, cfg models.RelayConfig) *models.RelayResult {
	result := &models.RelayResult{}
	base := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)

	if err := s.checkHealth(ctx, base); err != nil {
		s.logger.Warn().Err(err).Str("relay", base).Msg("relay health check failed")
		result.Error = fmt.Errorf("relay health check failed: %w", err)
		s.runFallback(ctx, target, cfg, result)
		return result
	}

	s.logger.Info().
		Str("relay", base).
		Str("mac", target.MAC).
		Msg("relay healthy, sending wake request")

	if err := s.postWake(ctx, base, target, cfg, result); err != nil {
		result.Error = err
		s.runFallback(ctx, target, cfg, result)
		return result
	}

	result.Sent = true
	s.logger.Info().
		Int("attempts", result.Attempts).
		Int("status", result.StatusCode).
		Msg("relay accepted wake request")

	return result
}

// checkHealth requires HTTP 200 and a JSON status of "healthy" or "ok".
// Anything else, including transport errors and timeouts, fails the check.
func (s *Impl) checkHealth(ctx context.Context, base string) error {
	rctx, cancel := context.WithTimeout(ctx, healthRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, base+healthPath, nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := s.healthClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}

	var health statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if health.Status != "healthy" && health.Status != "ok" {
		return fmt.Errorf("relay reported status %q", health.Status)
	}

	return nil
}

type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeTerminal
	outcomeRateLimited
	outcomeRetry
)

func (s *Impl) postWake(ctx context.Context, base string, target models.WakeTarget, cfg models.RelayConfig, result *models.RelayResult) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := s.wakeOnce(ctx, base, target, cfg)
		result.Attempts = attempt
		if status > 0 {
			result.StatusCode = status
		}

		outcome := classify(status, err)
		switch outcome {
		case outcomeSuccess:
			return nil
		case outcomeTerminal:
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				return fmt.Errorf("relay rejected authentication (status %d)", status)
			}
			return fmt.Errorf("relay rejected wake request (status %d)", status)
		case outcomeRateLimited:
			lastErr = fmt.Errorf("relay rate-limited wake request (status %d)", status)
		case outcomeRetry:
			if err != nil {
				lastErr = err
			} else {
				lastErr = fmt.Errorf("relay returned status %d", status)
			}
		}

		if attempt == maxAttempts {
			break
		}

		delay := s.retryDelay(attempt, outcome == outcomeRateLimited)
		s.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("wake request failed, retrying")

		if err := s.sleep(ctx, delay); err != nil {
			return fmt.Errorf("relay dispatch cancelled: %w", err)
		}
	}

	return fmt.Errorf("relay dispatch failed after %d attempts: %w", maxAttempts, lastErr)
}

func (s *Impl) wakeOnce(ctx context.Context, base string, target models.WakeTarget, cfg models.RelayConfig) (int, error) {
	body, err := json.Marshal(wakeRequest{MAC: target.MAC, IP: target.IP, Name: target.Name})
	if err != nil {
		return 0, fmt.Errorf("marshaling wake request: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, wakeRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, base+wakePath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating wake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("X-API-Key", cfg.APIKey)
	}

	resp, err := s.wakeClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wake request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		// The body is informational; HTTP-level success wins even when the
		// status field is unexpected.
		var wr statusResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&wr); err == nil &&
			wr.Status != "" && wr.Status != "sent" && wr.Status != "success" {
			s.logger.Debug().Str("status", wr.Status).Msg("relay reported unexpected wake status")
		}
	}

	return resp.StatusCode, nil
}

// classify maps one attempt's HTTP status or transport error onto the retry
// policy. Transport-level failures, timeouts included, count as retryable
// network errors.
func classify(status int, err error) attemptOutcome {
	if err != nil {
		return outcomeRetry
	}
	switch {
	case status == http.StatusOK, status == http.StatusAccepted, status == http.StatusNoContent:
		return outcomeSuccess
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return outcomeTerminal
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status >= 400 && status < 500:
		return outcomeTerminal
	case status >= 500 && status < 600:
		return outcomeRetry
	default:
		return outcomeRetry
	}
}

// retryDelay computes the pause after failed attempt n:
// min(2^(n-1) * baseDelay * mult, maxDelay) plus a uniform jitter of 10-40%
// of that value. The cap applies before jitter, and jitter is added, never
// subtracted, so synchronized clients spread out instead of retrying in
// lockstep.
func (s *Impl) retryDelay(attempt int, rateLimited bool) time.Duration {
	mult := 1.0
	if rateLimited {
		mult = rateLimitFactor
	}

	d := float64(baseDelay) * math.Pow(2, float64(attempt-1)) * mult
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}

	j := jitterMin + (jitterMax-jitterMin)*s.jitter()
	return time.Duration(d * (1 + j))
}

func (s *Impl) runFallback(ctx context.Context, target models.WakeTarget, cfg models.RelayConfig, result *models.RelayResult) {
	if !cfg.FallbackLocal {
		return
	}

	mac, err := magic.ParseMAC(target.MAC)
	if err != nil {
		// The orchestrator validates the MAC before dispatch; a parse
		// failure here means the target was handed in unvalidated.
		result.Error = fmt.Errorf("local fallback impossible: %w", err)
		return
	}

	s.logger.Info().Str("mac", mac.String()).Msg("falling back to local delivery")
	result.FallbackUsed = true
	result.Fallback = s.localSvc.Dispatch(ctx, mac, target.IP)
}

// ctxSleep pauses for d or until ctx is cancelled, whichever comes first.
// Retry pauses must be genuine suspension points so a cancelled dispatch
// aborts pending retries.
func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
