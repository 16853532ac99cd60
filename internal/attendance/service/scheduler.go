package service

import (
	"context"
	"sync"
	"time"

	"github.com/punchflow/punchflow-backend/pkg/actor"
	"github.com/punchflow/punchflow-backend/pkg/config"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// Each per-tenant sweep cycle gets a bounded slice of time
const sweepCycleTimeout = 2 * time.Minute

// SweepScheduler drives the batch sweeps across all active tenants on their
// configured intervals.
type SweepScheduler struct {
	db     *database.DB
	sweeps *SweepService
	cfg    *config.SweepConfig
	logger *logger.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSweepScheduler creates the cross-tenant sweep scheduler
func NewSweepScheduler(db *database.DB, sweeps *SweepService, cfg *config.SweepConfig, log *logger.Logger) *SweepScheduler {
	return &SweepScheduler{
		db:     db,
		sweeps: sweeps,
		cfg:    cfg,
		logger: log.WithComponent("sweep-scheduler"),
		stop:   make(chan struct{}),
	}
}

// Start launches the escalation and missing-out tickers
func (s *SweepScheduler) Start() {
	s.wg.Add(2)
	go s.loop("escalation", s.cfg.EscalationInterval, s.sweeps.RunEscalationSweep)
	go s.loop("missing-out", s.cfg.MissingOutInterval, s.sweeps.RunMissingOutSweep)

	s.logger.Info().
		Dur("escalation_interval", s.cfg.EscalationInterval).
		Dur("missing_out_interval", s.cfg.MissingOutInterval).
		Msg("sweep scheduler started")
}

// Stop halts both tickers and waits for in-flight cycles
func (s *SweepScheduler) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
	s.logger.Info().Msg("sweep scheduler stopped")
}

func (s *SweepScheduler) loop(name string, interval time.Duration, sweep func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.runCycle(name, sweep)
		}
	}
}

// runCycle fans one sweep out over every active tenant. A failing tenant is
// logged and skipped; the cycle continues.
func (s *SweepScheduler) runCycle(name string, sweep func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepCycleTimeout)
	defer cancel()

	// Sweeps act as the system, not on behalf of a user
	ctx = actor.WithActor(ctx, actor.SystemActor())

	tenantIDs, err := s.getActiveTenantIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("sweep", name).Msg("failed to list active tenants")
		return
	}

	for _, tenantID := range tenantIDs {
		tenantCtx := tenant.WithTenantID(ctx, tenantID)
		if err := sweep(tenantCtx); err != nil {
			s.logger.Error().
				Err(err).
				Str("sweep", name).
				Str("tenant_id", tenantID).
				Msg("sweep failed for tenant")
		}
	}
}

func (s *SweepScheduler) getActiveTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := `SELECT id FROM public.tenants WHERE is_active = TRUE`
	if err := s.db.DB.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}
