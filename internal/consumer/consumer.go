// Package consumer runs the broker ingestion loop: fetch, decode,
// reconcile, commit.
package consumer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AdamWentworth/pokesync/internal/envelope"
	"github.com/AdamWentworth/pokesync/internal/metrics"
	"github.com/AdamWentworth/pokesync/internal/service"
	"github.com/AdamWentworth/pokesync/pkg/backoff"
)

// fetchCommitter is the slice of kafka.Reader the loop needs. Narrowed
// for test substitution.
type fetchCommitter interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type readinessProber interface {
	EnsureReady(ctx context.Context) bool
}

type reconciler interface {
	Reconcile(ctx context.Context, b *envelope.Batch) (service.Result, error)
}

type spill interface {
	Enqueue(raw []byte) error
}

// Config holds the consumer's broker settings.
type Config struct {
	Broker  string
	Topic   string
	GroupID string

	PollTimeout        time.Duration
	ConnectBase        time.Duration
	ConnectMaxAttempts int
	PollBackoffCap     time.Duration
}

// Consumer owns the ingestion loop. Offsets are committed manually and
// only after a message reaches a terminal outcome: applied, spilled to
// the failure queue, or classified as permanently undecodable. Every
// path commits, so one poison message can never wedge the partition.
type Consumer struct {
	cfg        Config
	guardian   readinessProber
	reconciler reconciler
	queue      spill

	newReader func() fetchCommitter
	dial      func(ctx context.Context) error
}

// New builds a consumer wired to the real broker.
func New(cfg Config, guardian readinessProber, r reconciler, q spill) *Consumer {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.ConnectBase <= 0 {
		cfg.ConnectBase = 2 * time.Second
	}
	if cfg.PollBackoffCap <= 0 {
		cfg.PollBackoffCap = 60 * time.Second
	}

	c := &Consumer{cfg: cfg, guardian: guardian, reconciler: r, queue: q}
	c.dial = func(ctx context.Context) error {
		conn, err := kafka.DialContext(ctx, "tcp", cfg.Broker)
		if err != nil {
			return err
		}
		return conn.Close()
	}
	c.newReader = func() fetchCommitter {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Broker},
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    16 * 1024 * 1024,
		})
	}
	return c
}

// Run connects to the broker and consumes until ctx is cancelled. A
// broker that never comes up within the connect budget halts the
// consumer with an operator-visible log line.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		log.Printf("[Consumer] Giving up on broker %s after %d attempts: %v",
			c.cfg.Broker, c.cfg.ConnectMaxAttempts, err)
		return err
	}

	reader := c.newReader()
	defer reader.Close()

	log.Printf("[Consumer] Subscribed - topic:%s group:%s", c.cfg.Topic, c.cfg.GroupID)
	metrics.SetConsumerReady(true)
	defer metrics.SetConsumerReady(false)

	c.poll(ctx, reader)
	return nil
}

// connect verifies broker reachability before the reader is created, so
// startup failures surface as connection errors rather than silent
// fetch timeouts.
func (c *Consumer) connect(ctx context.Context) error {
	policy := backoff.Policy{
		MaxAttempts: c.cfg.ConnectMaxAttempts,
		Base:        c.cfg.ConnectBase,
		Cap:         c.cfg.PollBackoffCap,
	}
	attempt := 0
	return backoff.Retry(ctx, policy, func(ctx context.Context) error {
		attempt++
		if err := c.dial(ctx); err != nil {
			log.Printf("[Consumer] Broker %s not reachable (attempt %d): %v", c.cfg.Broker, attempt, err)
			return err
		}
		return nil
	})
}

func (c *Consumer) poll(ctx context.Context, reader fetchCommitter) {
	errPolicy := backoff.Policy{Base: c.cfg.ConnectBase, Cap: c.cfg.PollBackoffCap}
	consecutiveErrs := 0

	for {
		if ctx.Err() != nil {
			log.Printf("[Consumer] Shutting down")
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		msg, err := reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// Idle cycle, nothing queued.
				continue
			}
			if ctx.Err() != nil {
				log.Printf("[Consumer] Shutting down")
				return
			}
			consecutiveErrs++
			d := errPolicy.Delay(consecutiveErrs + 1)
			log.Printf("[Consumer] Fetch error (retrying in %s): %v", d, err)
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
			continue
		}
		consecutiveErrs = 0

		c.processMessage(ctx, reader, msg)
	}
}

// processMessage drives one message to a terminal outcome and commits
// its offset.
func (c *Consumer) processMessage(ctx context.Context, reader fetchCommitter, msg kafka.Message) {
	start := time.Now()

	b, err := envelope.Decode(msg.Value)
	if err != nil {
		log.Printf("[Consumer] Skipping undecodable message at offset %d: %v", msg.Offset, err)
		metrics.ObserveMessage(metrics.ResultSkipped, time.Since(start))
		c.commit(ctx, reader, msg)
		return
	}

	if !c.guardian.EnsureReady(ctx) {
		log.Printf("[Consumer] trace_id %s - store unavailable, spilling batch", b.TraceID)
		c.spillBatch(b)
		metrics.ObserveMessage(metrics.ResultSpilled, time.Since(start))
		c.commit(ctx, reader, msg)
		return
	}

	if _, err := c.reconciler.Reconcile(ctx, b); err != nil {
		log.Printf("[Consumer] trace_id %s - reconcile failed, spilling batch: %v", b.TraceID, err)
		c.spillBatch(b)
		metrics.ObserveMessage(metrics.ResultSpilled, time.Since(start))
	} else {
		metrics.ObserveMessage(metrics.ResultApplied, time.Since(start))
	}
	c.commit(ctx, reader, msg)
}

func (c *Consumer) spillBatch(b *envelope.Batch) {
	if err := c.queue.Enqueue(b.Raw); err != nil {
		log.Printf("[Consumer] trace_id %s - FAILED TO SPILL BATCH, data lost: %v", b.TraceID, err)
	}
}

func (c *Consumer) commit(ctx context.Context, reader fetchCommitter, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		log.Printf("[Consumer] Failed to commit offset %d: %v", msg.Offset, err)
	}
}
