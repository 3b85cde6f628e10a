package service

import (
	"context"
	"log"
	"time"

	"github.com/AdamWentworth/pokesync/internal/repository"
	"github.com/AdamWentworth/pokesync/pkg/backoff"
)

// Guardian probes store readiness before a batch is applied. Probing
// before the write, not instead of handling write errors, keeps the
// common failure mode (store restart) from burning a reconcile attempt
// per message.
type Guardian struct {
	store  repository.Store
	policy backoff.Policy
}

// NewGuardian creates a guardian probing with the given attempt budget
// and interval between attempts.
func NewGuardian(store repository.Store, attempts int, interval time.Duration) *Guardian {
	if attempts <= 0 {
		attempts = 5
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Guardian{
		store:  store,
		policy: backoff.Policy{MaxAttempts: attempts, Base: interval, Cap: interval},
	}
}

// EnsureReady pings the store, retrying within the probe budget. It
// returns false once the budget is exhausted so the caller can spill
// the batch instead of blocking the partition indefinitely.
func (g *Guardian) EnsureReady(ctx context.Context) bool {
	err := backoff.Retry(ctx, g.policy, func(ctx context.Context) error {
		if err := g.store.Ping(ctx); err != nil {
			log.Printf("[Guardian] Store not reachable: %v", err)
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("[Guardian] Store unavailable after %d attempts: %v", g.policy.MaxAttempts, err)
		return false
	}
	return true
}
