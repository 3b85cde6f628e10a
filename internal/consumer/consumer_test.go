package consumer

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamWentworth/pokesync/internal/envelope"
	"github.com/AdamWentworth/pokesync/internal/metrics"
	"github.com/AdamWentworth/pokesync/internal/service"
)

type stubCommitter struct {
	committed []kafka.Message
}

func (s *stubCommitter) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("not used")
}

func (s *stubCommitter) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.committed = append(s.committed, msgs...)
	return nil
}

func (s *stubCommitter) Close() error { return nil }

type stubGuardian struct{ ready bool }

func (g *stubGuardian) EnsureReady(ctx context.Context) bool { return g.ready }

type stubReconciler struct {
	err     error
	batches []*envelope.Batch
}

func (r *stubReconciler) Reconcile(ctx context.Context, b *envelope.Batch) (service.Result, error) {
	r.batches = append(r.batches, b)
	return service.Result{}, r.err
}

type stubSpill struct {
	enqueued [][]byte
}

func (s *stubSpill) Enqueue(raw []byte) error {
	s.enqueued = append(s.enqueued, raw)
	return nil
}

func gzipBody(t *testing.T, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestConsumer(g *stubGuardian, r *stubReconciler, q *stubSpill) *Consumer {
	return New(Config{
		Broker:      "localhost:9092",
		Topic:       "events",
		GroupID:     "event_group",
		PollTimeout: time.Second,
	}, g, r, q)
}

func TestProcessMessage_SuccessCommits(t *testing.T) {
	guardian := &stubGuardian{ready: true}
	rec := &stubReconciler{}
	spill := &stubSpill{}
	c := newTestConsumer(guardian, rec, spill)

	committer := &stubCommitter{}
	body := []byte(`{"user_id":"u-1","username":"ash"}`)
	c.processMessage(context.Background(), committer, kafka.Message{Value: gzipBody(t, body), Offset: 7})

	require.Len(t, rec.batches, 1)
	assert.Equal(t, "u-1", rec.batches[0].UserID)
	assert.Empty(t, spill.enqueued)
	require.Len(t, committer.committed, 1)
	assert.Equal(t, int64(7), committer.committed[0].Offset)
}

func TestProcessMessage_UndecodableSkipsAndCommits(t *testing.T) {
	guardian := &stubGuardian{ready: true}
	rec := &stubReconciler{}
	spill := &stubSpill{}
	c := newTestConsumer(guardian, rec, spill)

	committer := &stubCommitter{}
	c.processMessage(context.Background(), committer, kafka.Message{Value: []byte("not gzip")})

	assert.Empty(t, rec.batches, "undecodable message never reaches the reconciler")
	assert.Empty(t, spill.enqueued, "corruption is not worth preserving")
	assert.Len(t, committer.committed, 1, "offset still advances past the poison message")
}

func TestProcessMessage_StoreDownSpillsAndCommits(t *testing.T) {
	guardian := &stubGuardian{ready: false}
	rec := &stubReconciler{}
	spill := &stubSpill{}
	c := newTestConsumer(guardian, rec, spill)

	committer := &stubCommitter{}
	body := []byte(`{"user_id":"u-1","username":"ash"}`)
	c.processMessage(context.Background(), committer, kafka.Message{Value: gzipBody(t, body)})

	assert.Empty(t, rec.batches, "no reconcile attempt while the store is down")
	require.Len(t, spill.enqueued, 1)
	assert.Equal(t, body, spill.enqueued[0], "the decompressed body is spilled verbatim")
	assert.Len(t, committer.committed, 1)
}

func TestProcessMessage_ReconcileFailureSpillsAndCommits(t *testing.T) {
	guardian := &stubGuardian{ready: true}
	rec := &stubReconciler{err: errors.New("constraint violation")}
	spill := &stubSpill{}
	c := newTestConsumer(guardian, rec, spill)

	committer := &stubCommitter{}
	body := []byte(`{"user_id":"u-1","username":"ash"}`)
	c.processMessage(context.Background(), committer, kafka.Message{Value: gzipBody(t, body)})

	require.Len(t, rec.batches, 1)
	require.Len(t, spill.enqueued, 1)
	assert.Equal(t, body, spill.enqueued[0])
	assert.Len(t, committer.committed, 1)
}

func TestProcessMessage_RecordsOutcomeMetrics(t *testing.T) {
	metrics.Register()

	applied := testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues(metrics.ResultApplied))
	spilled := testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues(metrics.ResultSpilled))
	skipped := testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues(metrics.ResultSkipped))

	body := []byte(`{"user_id":"u-1","username":"ash"}`)

	c := newTestConsumer(&stubGuardian{ready: true}, &stubReconciler{}, &stubSpill{})
	c.processMessage(context.Background(), &stubCommitter{}, kafka.Message{Value: gzipBody(t, body)})

	c = newTestConsumer(&stubGuardian{ready: false}, &stubReconciler{}, &stubSpill{})
	c.processMessage(context.Background(), &stubCommitter{}, kafka.Message{Value: gzipBody(t, body)})

	c = newTestConsumer(&stubGuardian{ready: true}, &stubReconciler{}, &stubSpill{})
	c.processMessage(context.Background(), &stubCommitter{}, kafka.Message{Value: []byte("not gzip")})

	assert.Equal(t, applied+1, testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues(metrics.ResultApplied)))
	assert.Equal(t, spilled+1, testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues(metrics.ResultSpilled)))
	assert.Equal(t, skipped+1, testutil.ToFloat64(metrics.MessagesTotal.WithLabelValues(metrics.ResultSkipped)))
}

func TestConnect_GivesUpAfterBudget(t *testing.T) {
	c := New(Config{
		Broker:             "localhost:9092",
		Topic:              "events",
		GroupID:            "event_group",
		ConnectBase:        time.Millisecond,
		ConnectMaxAttempts: 3,
	}, &stubGuardian{ready: true}, &stubReconciler{}, &stubSpill{})

	dials := 0
	c.dial = func(ctx context.Context) error {
		dials++
		return errors.New("connection refused")
	}

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, dials)
}

func TestConnect_SucceedsAfterRetries(t *testing.T) {
	c := New(Config{
		Broker:             "localhost:9092",
		ConnectBase:        time.Millisecond,
		ConnectMaxAttempts: 5,
	}, &stubGuardian{ready: true}, &stubReconciler{}, &stubSpill{})

	ctx, cancel := context.WithCancel(context.Background())

	dials := 0
	c.dial = func(ctx context.Context) error {
		dials++
		if dials < 3 {
			return errors.New("connection refused")
		}
		return nil
	}
	// Cancel once the connect phase is over so poll exits on its first cycle.
	c.newReader = func() fetchCommitter {
		cancel()
		return &stubCommitter{}
	}

	err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dials)
}
