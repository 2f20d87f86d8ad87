// Package relayserver implements the HTTP relay gateway that performs local
// magic packet delivery on behalf of remote wake clients.
package relayserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tobiasge/wakerelay/internal/magic"
	"github.com/tobiasge/wakerelay/internal/models"
	"github.com/tobiasge/wakerelay/internal/services/local"
)

const (
	// maxBodyBytes caps the wake request body. Magic packet requests are
	// tiny; anything bigger is abuse.
	maxBodyBytes = 1024
	maxNameLen   = 100

	shutdownTimeout = 5 * time.Second
)

type stats struct {
	requestsHandled  int
	packetsSent      int
	validationErrors int
}

// Server is the relay gateway HTTP server.
type Server struct {
	cfg      models.ServerConfig
	localSvc local.Service
	logger   zerolog.Logger
	started  time.Time

	mu    sync.Mutex
	stats stats
}

// New creates a relay gateway server using the real local delivery service.
func New(logger zerolog.Logger, cfg models.ServerConfig) *Server {
	return NewWithLocal(logger, cfg, local.New(logger))
}

// NewWithLocal creates a relay gateway server with a custom local delivery
// service (for testing).
func NewWithLocal(logger zerolog.Logger, cfg models.ServerConfig, localSvc local.Service) *Server {
	return &Server{
		cfg:      cfg,
		localSvc: localSvc,
		logger:   logger,
		started:  time.Now(),
	}
}

// Router builds the gin handler tree: an open health endpoint and an
// API-key protected wake endpoint.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.handleHealth)
	r.POST("/wake", s.requireAPIKey(), s.handleWake)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Listen, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().
		Str("addr", addr).
		Bool("auth", s.cfg.APIKey != "" || s.cfg.APIKeyHash != "").
		Msg("relay gateway listening")

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down relay gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requireAPIKey rejects wake requests without a valid X-API-Key header when
// a key is configured. A bcrypt hash takes precedence over a plain key;
// plain keys are compared in constant time.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.APIKey == "" && s.cfg.APIKeyHash == "" {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" || !s.keyValid(key) {
			s.logger.Warn().
				Str("client", c.ClientIP()).
				Msg("rejected wake request with missing or invalid API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "invalid or missing API key",
			})
			return
		}

		c.Next()
	}
}

func (s *Server) keyValid(key string) bool {
	if s.cfg.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.APIKeyHash), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) == 1
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	s.stats.requestsHandled++
	st := s.stats
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"server":             "wakerelay",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":     int(time.Since(s.started).Seconds()),
		"requests_handled":   st.requestsHandled,
		"magic_packets_sent": st.packetsSent,
		"validation_errors":  st.validationErrors,
	})
}

type wakeRequest struct {
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
	Name string `json:"name"`
}

func (s *Server) handleWake(c *gin.Context) {
	s.mu.Lock()
	s.stats.requestsHandled++
	s.mu.Unlock()

	if ct := c.ContentType(); ct != "application/json" {
		s.rejectWake(c, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req wakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.rejectWake(c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.rejectWake(c, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.MAC == "" {
		s.rejectWake(c, http.StatusBadRequest, "missing required field: mac")
		return
	}

	mac, err := magic.ParseMAC(req.MAC)
	if err != nil {
		s.rejectWake(c, http.StatusBadRequest, "invalid MAC address format")
		return
	}
	if magic.IsDegenerate(mac) {
		s.rejectWake(c, http.StatusBadRequest, "refusing to wake all-zero or broadcast MAC")
		return
	}
	if req.IP != "" && !validIPv4(req.IP) {
		s.rejectWake(c, http.StatusBadRequest, "invalid IP address format")
		return
	}
	if len(req.Name) > maxNameLen {
		s.rejectWake(c, http.StatusBadRequest, "device name too long (max 100 characters)")
		return
	}

	name := req.Name
	if name == "" {
		name = "unknown device"
	}

	s.logger.Info().
		Str("client", c.ClientIP()).
		Str("name", name).
		Str("mac", mac.String()).
		Msg("wake request received")

	result := s.localSvc.Dispatch(c.Request.Context(), mac, req.IP)
	if !result.Success() {
		s.logger.Error().
			Int("attempts", result.TotalAttempts).
			Str("mac", mac.String()).
			Msg("failed to send magic packet")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "failed to send magic packet",
		})
		return
	}

	s.mu.Lock()
	s.stats.packetsSent++
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":       "sent",
		"mac":          mac.String(),
		"broadcast_ip": local.BroadcastAddr,
		"packet_size":  magic.PacketSize,
		"target": gin.H{
			"ip":   req.IP,
			"name": name,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) rejectWake(c *gin.Context, status int, message string) {
	s.mu.Lock()
	s.stats.validationErrors++
	s.mu.Unlock()

	s.logger.Warn().
		Str("client", c.ClientIP()).
		Int("status", status).
		Str("reason", message).
		Msg("rejected wake request")

	c.JSON(status, gin.H{
		"status":  "error",
		"message": message,
	})
}

func validIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
