// Package dispatch orchestrates wake delivery across the local and relay
// paths and keeps the bounded attempt history.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tobiasge/wakerelay/internal/magic"
	"github.com/tobiasge/wakerelay/internal/models"
	"github.com/tobiasge/wakerelay/internal/services/local"
	"github.com/tobiasge/wakerelay/internal/services/relay"
)

// Service defines the interface for wake orchestration.
type Service interface {
	SendWake(ctx context.Context, target models.WakeTarget, relayCfg *models.RelayConfig) *models.DispatchResult
}

// Orchestrator implements the dispatch Service interface.
type Orchestrator struct {
	localSvc local.Service
	relaySvc relay.Service
	log      *Log
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates an orchestrator backed by the real local and relay services.
func New(logger zerolog.Logger) *Orchestrator {
	return NewWithServices(logger, local.New(logger), relay.New(logger), NewLog(DefaultLogCapacity))
}

// NewWithServices creates an orchestrator with custom services (for
// testing).
func NewWithServices(logger zerolog.Logger, localSvc local.Service, relaySvc relay.Service, log *Log) *Orchestrator {
	return &Orchestrator{
		localSvc: localSvc,
		relaySvc: relaySvc,
		log:      log,
		logger:   logger,
		now:      time.Now,
	}
}

// Log exposes the bounded attempt history for presentation layers.
func (o *Orchestrator) Log() *Log {
	return o.log
}

// SendWake validates the target, dispatches via the relay when one is
// configured and enabled, locally otherwise, and records every attempt.
// Validation failures are logged with zero network attempts. Each dispatch
// appends one attempt record, or two when a relay dispatch fell back to
// local delivery.
func (o *Orchestrator) SendWake(ctx context.Context, target models.WakeTarget, relayCfg *models.RelayConfig) *models.DispatchResult {
	relayMode := relayCfg != nil && relayCfg.Enabled

	method := models.MethodLocal
	if relayMode {
		method = models.MethodRelay
	}

	mac, err := magic.ParseMAC(target.MAC)
	if err != nil {
		msg := fmt.Sprintf("invalid wake target: %v", err)
		o.logger.Error().Err(err).Str("mac", target.MAC).Msg("wake target validation failed")
		o.append(models.DispatchAttempt{
			Timestamp: o.now(),
			Method:    method,
			Success:   false,
			Message:   msg,
		})
		return &models.DispatchResult{Success: false, Method: method, Message: msg}
	}

	if relayMode {
		return o.sendViaRelay(ctx, target, *relayCfg)
	}
	return o.sendLocal(ctx, mac, target.IP)
}

func (o *Orchestrator) sendLocal(ctx context.Context, mac magic.MAC, targetIP string) *models.DispatchResult {
	result := o.localSvc.Dispatch(ctx, mac, targetIP)
	msg := localMessage(result)

	o.append(models.DispatchAttempt{
		Timestamp: o.now(),
		Method:    models.MethodLocal,
		Success:   result.Success(),
		Message:   msg,
	})

	return &models.DispatchResult{
		Success: result.Success(),
		Method:  models.MethodLocal,
		Message: msg,
	}
}

func (o *Orchestrator) sendViaRelay(ctx context.Context, target models.WakeTarget, cfg models.RelayConfig) *models.DispatchResult {
	result := o.relaySvc.Dispatch(ctx, target, cfg)

	var relayMsg string
	if result.Sent {
		relayMsg = fmt.Sprintf("relay accepted wake request (HTTP %d, %d attempt(s))", result.StatusCode, result.Attempts)
	} else {
		relayMsg = fmt.Sprintf("relay dispatch failed: %v", result.Error)
	}

	o.append(models.DispatchAttempt{
		Timestamp:  o.now(),
		Method:     models.MethodRelay,
		Success:    result.Sent,
		Message:    relayMsg,
		StatusCode: result.StatusCode,
	})

	if result.FallbackUsed && result.Fallback != nil {
		fallbackMsg := "local fallback: " + localMessage(result.Fallback)
		o.append(models.DispatchAttempt{
			Timestamp: o.now(),
			Method:    models.MethodLocal,
			Success:   result.Fallback.Success(),
			Message:   fallbackMsg,
		})
	}

	msg := relayMsg
	if !result.Sent && result.FallbackUsed && result.Fallback != nil {
		msg = fmt.Sprintf("%s; local fallback %s", relayMsg, successWord(result.Fallback.Success()))
	}

	return &models.DispatchResult{
		Success: result.Success(),
		Method:  models.MethodRelay,
		Message: msg,
	}
}

func (o *Orchestrator) append(attempt models.DispatchAttempt) {
	o.log.Append(attempt)
}

func localMessage(r *models.LocalResult) string {
	return fmt.Sprintf("%d/%d magic packet sends succeeded", r.SuccessCount, r.TotalAttempts)
}

func successWord(ok bool) string {
	if ok {
		return "succeeded"
	}
	return "failed"
}
