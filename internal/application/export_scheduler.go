package application

import (
	"context"
	"sync"
	"time"

	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
)

const (
	defaultExportTimeout  = 2 * time.Minute
	defaultExportLockTTL  = 2 * time.Minute
	defaultLockRetryDelay = 500 * time.Millisecond
	defaultLockAttempts   = 20

	// lockedOutRetries bounds follow-up runs after the lock stayed held elsewhere
	lockedOutRetries = 1
)

// Exporter is the export operation the scheduler runs
type Exporter interface {
	Export(ctx context.Context, collectionID string) error
}

// ExportSchedulerOptions tunes background exports
type ExportSchedulerOptions struct {
	Timeout        time.Duration
	LockTTL        time.Duration
	LockRetryDelay time.Duration
	LockAttempts   int
}

type exportJob struct {
	pending bool
}

// ExportScheduler runs exports off the request path. At most one export per collection
// is in flight; triggers that arrive meanwhile collapse into a single follow-up run.
type ExportScheduler struct {
	exporter Exporter
	lock     ports.ExportLock
	opts     ExportSchedulerOptions
	logger   zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*exportJob
	wg   sync.WaitGroup
}

// NewExportScheduler creates a scheduler. lock may be nil for single-process deployments.
func NewExportScheduler(exporter Exporter, lock ports.ExportLock, opts ExportSchedulerOptions, logger zerolog.Logger) *ExportScheduler {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultExportTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultExportLockTTL
	}
	if opts.LockRetryDelay <= 0 {
		opts.LockRetryDelay = defaultLockRetryDelay
	}
	if opts.LockAttempts <= 0 {
		opts.LockAttempts = defaultLockAttempts
	}
	return &ExportScheduler{
		exporter: exporter,
		lock:     lock,
		opts:     opts,
		logger:   logger.With().Str("component", "export_scheduler").Logger(),
		jobs:     make(map[string]*exportJob),
	}
}

// Trigger schedules an export of collectionID and returns immediately
func (s *ExportScheduler) Trigger(collectionID string) {
	if collectionID == "" {
		return
	}

	s.mu.Lock()
	if job, running := s.jobs[collectionID]; running {
		job.pending = true
		s.mu.Unlock()
		return
	}
	s.jobs[collectionID] = &exportJob{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(collectionID)
}

// Wait blocks until every scheduled export has finished
func (s *ExportScheduler) Wait() {
	s.wg.Wait()
}

func (s *ExportScheduler) run(collectionID string) {
	defer s.wg.Done()

	lockedOut := 0
	for {
		ran := s.exportOnce(collectionID)

		s.mu.Lock()
		job := s.jobs[collectionID]
		if ran {
			lockedOut = 0
		} else if lockedOut < lockedOutRetries {
			// The holder may have read the records before our write landed
			lockedOut++
			job.pending = true
		}
		if !job.pending {
			delete(s.jobs, collectionID)
			s.mu.Unlock()
			return
		}
		job.pending = false
		s.mu.Unlock()
	}
}

// exportOnce reports false when the export was skipped because the lock could not be taken
func (s *ExportScheduler) exportOnce(collectionID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	if s.lock != nil {
		release, ok := s.acquire(ctx, collectionID)
		if !ok {
			return false
		}
		defer release()
	}

	if err := s.exporter.Export(ctx, collectionID); err != nil {
		s.logger.Warn().Err(err).Str("collection_id", collectionID).Msg("Background export failed")
	}
	return true
}

// acquire waits for the cross-process lock. A lock backend error lets the export
// proceed since in-process coalescing still holds.
func (s *ExportScheduler) acquire(ctx context.Context, collectionID string) (func(), bool) {
	key := "sheet-export:" + collectionID
	for attempt := 0; attempt < s.opts.LockAttempts; attempt++ {
		release, ok, err := s.lock.Acquire(ctx, key, s.opts.LockTTL)
		if err != nil {
			s.logger.Warn().Err(err).Str("collection_id", collectionID).Msg("Export lock unavailable, exporting without it")
			return func() {}, true
		}
		if ok {
			return release, true
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(s.opts.LockRetryDelay):
		}
	}

	s.logger.Warn().Str("collection_id", collectionID).Msg("Export lock held elsewhere, deferring export")
	return nil, false
}
