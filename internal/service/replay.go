package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/adhocore/gronx"

	"github.com/AdamWentworth/pokesync/internal/envelope"
	"github.com/AdamWentworth/pokesync/internal/metrics"
	"github.com/AdamWentworth/pokesync/internal/queue"
)

// ReplayScheduler periodically drains the failure queue back through the
// reconciler on a cron schedule. Lines that fail again are retained for
// the next run; lines that can never decode are dropped, since
// redelivery cannot fix corruption.
type ReplayScheduler struct {
	queue      *queue.FailureQueue
	reconciler *Reconciler
	cronExpr   string
}

// NewReplayScheduler validates the cron expression and builds the
// scheduler.
func NewReplayScheduler(q *queue.FailureQueue, r *Reconciler, cronExpr string) (*ReplayScheduler, error) {
	if !gronx.New().IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid replay cron expression: %q", cronExpr)
	}
	return &ReplayScheduler{queue: q, reconciler: r, cronExpr: cronExpr}, nil
}

// Run blocks until ctx is cancelled, draining the queue at each cron
// tick.
func (s *ReplayScheduler) Run(ctx context.Context) {
	log.Printf("[Replay] Scheduler started - cron:%s", s.cronExpr)

	for {
		next, err := gronx.NextTick(s.cronExpr, false)
		if err != nil {
			log.Printf("[Replay] Failed to compute next tick: %v", err)
			return
		}

		select {
		case <-ctx.Done():
			log.Printf("[Replay] Scheduler stopped")
			return
		case <-time.After(time.Until(next)):
		}

		s.runOnce(ctx)
	}
}

// runOnce drains the queue with a bounded deadline so a stuck store
// cannot pin the scheduler past the next tick.
func (s *ReplayScheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	replayed, err := s.queue.Drain(runCtx, s.applyLine)
	if err != nil {
		log.Printf("[Replay] Drain failed: %v", err)
		return
	}
	if replayed > 0 {
		metrics.ReplayedTotal.Add(float64(replayed))
		log.Printf("[Replay] Successfully reprocessed %d messages", replayed)
	}
}

// applyLine replays one stored envelope body. A decode failure returns
// nil so the line is discarded; reconcile failures propagate so the
// line is retained.
func (s *ReplayScheduler) applyLine(ctx context.Context, line []byte) error {
	b, err := envelope.DecodeJSON(line)
	if err != nil {
		var de *envelope.DecodeError
		if errors.As(err, &de) {
			log.Printf("[Replay] Dropping undecodable queued message: %v", err)
			return nil
		}
		return err
	}

	if _, err := s.reconciler.Reconcile(ctx, b); err != nil {
		return err
	}
	return nil
}
