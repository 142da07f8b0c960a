package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ikimina/sacco-auth/internal/mfa/ratelimit"
	"github.com/ikimina/sacco-auth/internal/mfa/replay"
	"github.com/ikimina/sacco-auth/internal/mfa/store"
)

const (
	defaultHousekeepingInterval = 1 * time.Hour
	defaultDeviceRetention      = 30 * 24 * time.Hour
	defaultAuditRetention       = 90 * 24 * time.Hour
)

// HousekeepingService periodically reaps expired challenges, stale trusted
// devices, old audit rows, and the in-memory replay and rate-limit entries
// whose windows have elapsed.
type HousekeepingService struct {
	Store   store.Store
	Replays *replay.Guard
	Limits  *ratelimit.Limiter
	Logger  *slog.Logger

	Interval        time.Duration
	DeviceRetention time.Duration
	AuditRetention  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService wires a housekeeping worker. Zero durations take
// the defaults (hourly sweep, 30 day device retention, 90 day audit
// retention).
func NewHousekeepingService(st store.Store, replays *replay.Guard, limits *ratelimit.Limiter, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = defaultHousekeepingInterval
	}

	return &HousekeepingService{
		Store:           st,
		Replays:         replays,
		Limits:          limits,
		Logger:          logger,
		Interval:        interval,
		DeviceRetention: defaultDeviceRetention,
		AuditRetention:  defaultAuditRetention,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
	s.Sweep()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs one cleanup pass. Each deletion is independent; a failure
// in one does not stop the others.
func (s *HousekeepingService) Sweep() {
	ctx := context.Background()
	now := time.Now()

	if n, err := s.Store.Challenges().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
	} else if n > 0 {
		s.Logger.Debug("deleted expired challenges", "count", n)
	}

	if n, err := s.Store.TrustedDevices().DeleteStale(ctx, now.Add(-s.DeviceRetention)); err != nil {
		s.Logger.Error("failed to delete stale trusted devices", "error", err)
	} else if n > 0 {
		s.Logger.Debug("deleted stale trusted devices", "count", n)
	}

	if n, err := s.Store.Audit().DeleteOlderThan(ctx, now.Add(-s.AuditRetention)); err != nil {
		s.Logger.Error("failed to trim audit log", "error", err)
	} else if n > 0 {
		s.Logger.Debug("trimmed audit log", "count", n)
	}

	if s.Replays != nil {
		if n := s.Replays.Sweep(); n > 0 {
			s.Logger.Debug("swept replay entries", "count", n)
		}
	}
	if s.Limits != nil {
		if n := s.Limits.Sweep(); n > 0 {
			s.Logger.Debug("swept rate limit windows", "count", n)
		}
	}

	s.Logger.Info("housekeeping sweep completed")
}
