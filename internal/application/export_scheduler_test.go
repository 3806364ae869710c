package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingExporter struct {
	mu      sync.Mutex
	calls   map[string]int
	running int
	maxSeen int
	release chan struct{}
}

func newBlockingExporter() *blockingExporter {
	return &blockingExporter{calls: make(map[string]int), release: make(chan struct{})}
}

func (e *blockingExporter) Export(ctx context.Context, collectionID string) error {
	e.mu.Lock()
	e.calls[collectionID]++
	e.running++
	if e.running > e.maxSeen {
		e.maxSeen = e.running
	}
	e.mu.Unlock()

	<-e.release

	e.mu.Lock()
	e.running--
	e.mu.Unlock()
	return nil
}

func (e *blockingExporter) count(collectionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[collectionID]
}

type fakeLock struct {
	mu       sync.Mutex
	held     bool
	err      error
	acquired int
}

func (l *fakeLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	l.acquired++
	return func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}, true, nil
}

func TestExportScheduler_CoalescesTriggers(t *testing.T) {
	exporter := newBlockingExporter()
	scheduler := NewExportScheduler(exporter, nil, ExportSchedulerOptions{}, zerolog.Nop())

	scheduler.Trigger("col-1")
	require.Eventually(t, func() bool { return exporter.count("col-1") == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		scheduler.Trigger("col-1")
	}
	close(exporter.release)
	scheduler.Wait()

	assert.Equal(t, 2, exporter.count("col-1"), "queued triggers collapse into one follow-up")
	assert.Equal(t, 1, exporter.maxSeen)
}

func TestExportScheduler_IndependentCollections(t *testing.T) {
	exporter := newBlockingExporter()
	scheduler := NewExportScheduler(exporter, nil, ExportSchedulerOptions{}, zerolog.Nop())

	scheduler.Trigger("col-1")
	scheduler.Trigger("col-2")
	scheduler.Trigger("")
	require.Eventually(t, func() bool {
		return exporter.count("col-1") == 1 && exporter.count("col-2") == 1
	}, time.Second, 5*time.Millisecond)

	close(exporter.release)
	scheduler.Wait()
	assert.Equal(t, 0, exporter.count(""))
}

func TestExportScheduler_WaitsForCrossProcessLock(t *testing.T) {
	exporter := newBlockingExporter()
	close(exporter.release)
	lock := &fakeLock{held: true}
	scheduler := NewExportScheduler(exporter, lock, ExportSchedulerOptions{
		LockRetryDelay: 5 * time.Millisecond,
		LockAttempts:   100,
	}, zerolog.Nop())

	scheduler.Trigger("col-1")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, exporter.count("col-1"))

	lock.mu.Lock()
	lock.held = false
	lock.mu.Unlock()

	scheduler.Wait()
	assert.Equal(t, 1, exporter.count("col-1"))
	assert.False(t, lock.held, "lock released after export")
}

func TestExportScheduler_LockBackendDownStillExports(t *testing.T) {
	exporter := newBlockingExporter()
	close(exporter.release)
	scheduler := NewExportScheduler(exporter, &fakeLock{err: errors.New("dial tcp: connection refused")}, ExportSchedulerOptions{}, zerolog.Nop())

	scheduler.Trigger("col-1")
	scheduler.Wait()
	assert.Equal(t, 1, exporter.count("col-1"))
}

func TestExportScheduler_LockedOutRunIsRetriedOnce(t *testing.T) {
	exporter := newBlockingExporter()
	close(exporter.release)
	lock := &fakeLock{held: true}
	scheduler := NewExportScheduler(exporter, lock, ExportSchedulerOptions{
		LockRetryDelay: 30 * time.Millisecond,
		LockAttempts:   3,
	}, zerolog.Nop())

	scheduler.Trigger("col-1")

	// Free the lock after the first run has given up but before the follow-up does
	time.Sleep(105 * time.Millisecond)
	lock.mu.Lock()
	lock.held = false
	lock.mu.Unlock()

	scheduler.Wait()
	assert.Equal(t, 1, exporter.count("col-1"), "the write is not lost when another holder had the lock")
}

func TestExportScheduler_PermanentlyLockedOutGivesUp(t *testing.T) {
	exporter := newBlockingExporter()
	close(exporter.release)
	lock := &fakeLock{held: true}
	scheduler := NewExportScheduler(exporter, lock, ExportSchedulerOptions{
		LockRetryDelay: time.Millisecond,
		LockAttempts:   2,
	}, zerolog.Nop())

	scheduler.Trigger("col-1")
	scheduler.Wait()
	assert.Equal(t, 0, exporter.count("col-1"))
}
