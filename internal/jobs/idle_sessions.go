package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lukasbauer/lector/internal/store"
	"github.com/lukasbauer/lector/internal/transcript"
)

// IdleSessionJob closes abandoned sessions. It runs on a configurable
// interval (default: 10 minutes) and:
// - Evicts in-memory transcript buffers that have gone idle
// - Marks database sessions as ended when they stop receiving segments
//
// The in-memory state is rebuildable from the store, so eviction is safe
// even if a capture client comes back later; it just restarts the session.
type IdleSessionJob struct {
	store      *store.Store
	aggregator *transcript.Aggregator
	logger     *log.Logger
	interval   time.Duration
	maxIdle    time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewIdleSessionJob creates a new idle session sweeper.
func NewIdleSessionJob(s *store.Store, agg *transcript.Aggregator, logger *log.Logger, interval, maxIdle time.Duration) *IdleSessionJob {
	if interval == 0 {
		interval = 10 * time.Minute
	}
	if maxIdle == 0 {
		maxIdle = time.Hour
	}
	return &IdleSessionJob{
		store:      s,
		aggregator: agg,
		logger:     logger,
		interval:   interval,
		maxIdle:    maxIdle,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the background job.
func (j *IdleSessionJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("IdleSessionJob: started (interval=%v, maxIdle=%v)", j.interval, j.maxIdle)
}

// Stop gracefully stops the background job.
func (j *IdleSessionJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("IdleSessionJob: stopped")
}

func (j *IdleSessionJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopCh:
			return
		}
	}
}

func (j *IdleSessionJob) sweep() {
	j.aggregator.EvictIdle(j.maxIdle)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.maxIdle)
	stale, err := j.store.ListStaleActiveSessions(ctx, cutoff, 100)
	if err != nil {
		j.logger.Printf("IdleSessionJob: list stale sessions: %v", err)
		return
	}

	for _, sess := range stale {
		ended, err := j.store.EndSession(ctx, sess.ID)
		if err != nil {
			j.logger.Printf("IdleSessionJob: end session %s: %v", sess.ID, err)
			continue
		}
		if ended {
			j.logger.Printf("IdleSessionJob: ended idle session %s (last update %s)", sess.ID, sess.UpdatedAt.Format(time.RFC3339))
		}
	}
}
