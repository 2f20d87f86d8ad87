// Package local delivers magic packets over the local network path.
package local

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tobiasge/wakerelay/internal/magic"
	"github.com/tobiasge/wakerelay/internal/models"
	"github.com/tobiasge/wakerelay/internal/services/udp"
)

// BroadcastAddr is the global broadcast destination every dispatch targets.
const BroadcastAddr = "255.255.255.255"

// wolPorts lists the ports tried for every destination: 9 is the IANA
// Wake-on-LAN port, 7 the legacy echo port some stacks still listen on.
var wolPorts = []int{9, 7}

// Service defines the interface for local magic packet delivery.
type Service interface {
	Dispatch(ctx context.Context, mac magic.MAC, targetIP string) *models.LocalResult
}

// Impl implements the local delivery Service interface.
type Impl struct {
	sender udp.Sender
	logger zerolog.Logger
}

// New creates a local delivery service using the real UDP dispatcher.
func New(logger zerolog.Logger) *Impl {
	return &Impl{sender: udp.New(logger), logger: logger}
}

// NewWithSender creates a local delivery service with a custom sender (for
// testing).
func NewWithSender(logger zerolog.Logger, sender udp.Sender) *Impl {
	return &Impl{sender: sender, logger: logger}
}

// Dispatch builds one magic packet and sends it to the global broadcast
// address and, when targetIP is non-empty, directly to the device, on both
// Wake-on-LAN ports. Sends run sequentially in that order and are
// independent: one failure never aborts the others. Errors stay inside the
// result; this boundary never raises.
func (s *Impl) Dispatch(ctx context.Context, mac magic.MAC, targetIP string) *models.LocalResult {
	packet := magic.NewPacket(mac)

	destinations := []string{BroadcastAddr}
	if targetIP != "" {
		destinations = append(destinations, targetIP)
	}

	result := &models.LocalResult{}
	for _, addr := range destinations {
		for _, port := range wolPorts {
			result.TotalAttempts++

			if err := s.sender.Send(ctx, packet.Bytes(), addr, port); err != nil {
				s.logger.Warn().
					Err(err).
					Str("addr", addr).
					Int("port", port).
					Msg("magic packet send failed")
				result.Errors = append(result.Errors, err)
				continue
			}

			result.SuccessCount++
			s.logger.Info().
				Str("mac", mac.String()).
				Str("addr", addr).
				Int("port", port).
				Msg("magic packet sent")
		}
	}

	return result
}
