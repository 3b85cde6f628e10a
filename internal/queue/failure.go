// Package queue provides the durable local spillover for batches that
// could not be reconciled at receipt time.
package queue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// FailureQueue appends failed envelope bodies to an append-only JSONL
// file, one raw body per line, and replays them through a caller-supplied
// apply function. The read-apply-truncate cycle is deliberately not
// transactional: a crash between a successful apply and the truncate
// causes a harmless re-application, never data loss.
type FailureQueue struct {
	path string
	mu   sync.Mutex
}

// New creates a failure queue backed by the given file, creating the
// parent directory if needed.
func New(path string) (*FailureQueue, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create failure queue dir: %w", err)
		}
	}
	return &FailureQueue{path: path}, nil
}

// Enqueue appends one raw envelope body as a single line. The body is
// compacted so embedded newlines cannot split a record.
func (q *FailureQueue) Enqueue(raw []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return fmt.Errorf("failed to compact failed message: %w", err)
	}
	buf.WriteByte('\n')

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open failure queue: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append failed message: %w", err)
	}

	log.Printf("[FailureQueue] Message saved to %s for later reprocessing", q.path)
	return nil
}

// Pending reports the number of queued lines.
func (q *FailureQueue) Pending() (int, error) {
	q.mu.Lock()
	lines, err := q.readLines()
	q.mu.Unlock()
	return len(lines), err
}

// Drain reads all pending lines and calls apply on each. Lines whose
// apply fails are retained for the next drain; everything else is
// removed. Returns the number of successfully replayed lines.
func (q *FailureQueue) Drain(ctx context.Context, apply func(context.Context, []byte) error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	lines, err := q.readLines()
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	log.Printf("[FailureQueue] Reprocessing %d failed messages", len(lines))

	replayed := 0
	var retained [][]byte
	for _, line := range lines {
		if err := apply(ctx, line); err != nil {
			log.Printf("[FailureQueue] Failed to reprocess message: %v", err)
			retained = append(retained, line)
			continue
		}
		replayed++
	}

	if err := q.rewrite(retained); err != nil {
		return replayed, err
	}
	return replayed, nil
}

func (q *FailureQueue) readLines() ([][]byte, error) {
	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open failure queue: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read failure queue: %w", err)
	}
	return lines, nil
}

// rewrite truncates the file and writes back only the retained lines.
func (q *FailureQueue) rewrite(retained [][]byte) error {
	f, err := os.OpenFile(q.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to truncate failure queue: %w", err)
	}
	defer f.Close()

	for _, line := range retained {
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to rewrite failure queue: %w", err)
		}
	}
	return nil
}
