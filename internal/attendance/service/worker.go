package service

import (
	"context"
	"sync"
	"time"

	"github.com/punchflow/punchflow-backend/pkg/config"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// Enrichment must finish well within a sweep interval
const enrichmentTimeout = 30 * time.Second

// EnrichmentJob identifies one record awaiting deferred enrichment. The
// tenant context does not survive the request, so the job carries it.
type EnrichmentJob struct {
	RecordID string
	TenantID string
	Timezone string
}

// EnrichmentPool is the bounded worker pool draining enrichment jobs.
// Submission never blocks the ingest path; when the queue is full the job is
// dropped and the sweep picks the record up later.
type EnrichmentPool struct {
	enrichment *EnrichmentService
	jobs       chan EnrichmentJob
	workers    int
	logger     *logger.Logger

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// NewEnrichmentPool creates the pool from the sweep config's sizing
func NewEnrichmentPool(enrichment *EnrichmentService, cfg *config.SweepConfig, log *logger.Logger) *EnrichmentPool {
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 64
	}

	return &EnrichmentPool{
		enrichment: enrichment,
		jobs:       make(chan EnrichmentJob, queueSize),
		workers:    workers,
		logger:     log.WithComponent("enrichment-pool"),
		stop:       make(chan struct{}),
	}
}

// Start launches the workers
func (p *EnrichmentPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	p.logger.Info().Int("workers", p.workers).Msg("enrichment pool started")
}

// Stop drains in-flight jobs and shuts the pool down
func (p *EnrichmentPool) Stop() {
	p.once.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
	p.logger.Info().Msg("enrichment pool stopped")
}

// Submit enqueues a job without blocking. A full queue drops the job; the
// record stays valid and the batch sweeps will still see it.
func (p *EnrichmentPool) Submit(job EnrichmentJob) {
	select {
	case p.jobs <- job:
	default:
		p.logger.Warn().
			Str("record_id", job.RecordID).
			Msg("enrichment queue full, job dropped")
	}
}

func (p *EnrichmentPool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			// Drain whatever is already queued before exiting
			for {
				select {
				case job := <-p.jobs:
					p.handle(job)
				default:
					return
				}
			}
		case job := <-p.jobs:
			p.handle(job)
		}
	}
}

func (p *EnrichmentPool) handle(job EnrichmentJob) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichmentTimeout)
	defer cancel()

	ctx = tenant.WithTenantID(ctx, job.TenantID)
	if job.Timezone != "" {
		ctx = tenant.WithTimezone(ctx, job.Timezone)
	}

	if err := p.enrichment.EnrichRecord(ctx, job.RecordID); err != nil {
		p.logger.Error().
			Err(err).
			Str("record_id", job.RecordID).
			Str("tenant_id", job.TenantID).
			Msg("enrichment failed")
	}
}
