package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/credcore/pkg/jwtx"
)

// DefaultHousekeepingInterval is how often the housekeeper runs.
const DefaultHousekeepingInterval = time.Hour

// HousekeepingService periodically reloads the key ring, rotates an aged
// active key, sweeps retiring keys past their grace period and deactivates
// expired API keys.
type HousekeepingService struct {
	Ring     *jwtx.KeyRing
	APIKeys  *APIKeyService // optional
	Logger   *slog.Logger
	Interval time.Duration
	Timeout  time.Duration

	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewHousekeepingService returns a stopped service. A zero interval uses
// DefaultHousekeepingInterval.
func NewHousekeepingService(ring *jwtx.KeyRing, apiKeys *APIKeyService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingService{
		Ring:     ring,
		APIKeys:  apiKeys,
		Logger:   logger,
		Interval: interval,
		Timeout:  DefaultKeyOpTimeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. The first pass runs immediately.
func (s *HousekeepingService) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run()
		s.Logger.Info("housekeeping service started", slog.Duration("interval", s.Interval))
	})
}

// Stop ends the worker and waits for an in-progress pass to finish.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if !s.started.Load() {
			return
		}
		<-s.doneCh
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())
	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// HousekeepingResult summarises one pass.
type HousekeepingResult struct {
	RotatedKid         string
	SweptKids          []string
	DeactivatedAPIKeys int64
	Failures           int
}

// RunOnce performs one pass. Steps are independent; a failure in one is
// logged and the rest still run.
func (s *HousekeepingService) RunOnce(ctx context.Context) HousekeepingResult {
	var res HousekeepingResult

	step := func(name string, fn func(ctx context.Context) error) {
		ctx, cancel := withTimeout(ctx, s.Timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			res.Failures++
			s.Logger.ErrorContext(ctx, "housekeeping step failed", slog.String("step", name), slog.Any("err", err))
		}
	}

	step("reload", s.Ring.Reload)
	step("rotate", func(ctx context.Context) (err error) {
		res.RotatedKid, err = s.Ring.RotateIfDue(ctx)
		return err
	})
	step("sweep", func(ctx context.Context) (err error) {
		res.SweptKids, err = s.Ring.Sweep(ctx)
		return err
	})
	if s.APIKeys != nil {
		step("expire_api_keys", func(ctx context.Context) (err error) {
			res.DeactivatedAPIKeys, err = s.APIKeys.DeactivateExpired(ctx)
			return err
		})
	}

	s.Logger.InfoContext(ctx, "housekeeping pass completed",
		slog.String("rotated_kid", res.RotatedKid),
		slog.Int("swept_keys", len(res.SweptKids)),
		slog.Int64("deactivated_api_keys", res.DeactivatedAPIKeys),
		slog.Int("failures", res.Failures))
	return res
}
