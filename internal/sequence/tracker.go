package sequence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	cerrors "github.com/lugondev/go-continuum/internal/errors"
)

// CheckpointStore persists the last observed sequence.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context, key string) (uint64, bool, error)
	SaveCheckpoint(ctx context.Context, key string, sequence uint64) error
}

// Pending is a submission waiting for its target sequence.
type Pending struct {
	ID       string
	Sequence uint64
	Payload  any
}

// Tracker follows the observed sequence, persists it as a checkpoint and
// releases queued submissions in sequence order.
type Tracker struct {
	mu      sync.Mutex
	key     string
	store   CheckpointStore
	current uint64
	pending []Pending // sorted by Sequence, unique
	logger  *zap.Logger
}

// NewTracker restores the checkpoint stored under key. A missing
// checkpoint starts at zero.
func NewTracker(ctx context.Context, store CheckpointStore, key string, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		key:    key,
		store:  store,
		logger: logger,
	}

	if store != nil {
		seq, ok, err := store.LoadCheckpoint(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			t.current = seq
		}
	}
	return t, nil
}

// Current returns the last observed sequence.
func (t *Tracker) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Next returns the sequence the next submission should target.
func (t *Tracker) Next() uint64 {
	return t.Current() + 1
}

// PendingCount returns the number of queued submissions.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Observe records a sequence read from the ledger. Observations never move
// the checkpoint backwards; the return value reports whether it advanced.
func (t *Tracker) Observe(ctx context.Context, seq uint64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seq < t.current {
		t.logger.Warn("ignoring stale sequence observation",
			zap.Uint64("observed", seq),
			zap.Uint64("current", t.current),
		)
		return false, nil
	}
	if seq == t.current {
		return false, nil
	}

	if t.store != nil {
		if err := t.store.SaveCheckpoint(ctx, t.key, seq); err != nil {
			return false, fmt.Errorf("save checkpoint: %w", err)
		}
	}
	t.current = seq
	return true, nil
}

// Enqueue queues p for its target sequence. Targets at or below the current
// sequence, and targets already queued, are conflicts.
func (t *Tracker) Enqueue(p Pending) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.Sequence <= t.current {
		return cerrors.SequenceConflict(t.current+1, p.Sequence)
	}

	i := sort.Search(len(t.pending), func(i int) bool {
		return t.pending[i].Sequence >= p.Sequence
	})
	if i < len(t.pending) && t.pending[i].Sequence == p.Sequence {
		return cerrors.SequenceConflict(t.current+1, p.Sequence).WithDetails(map[string]any{
			"queued_id": t.pending[i].ID,
		})
	}

	t.pending = append(t.pending, Pending{})
	copy(t.pending[i+1:], t.pending[i:])
	t.pending[i] = p
	return nil
}

// Ready removes and returns the queued submission targeting current+1, if
// any. Stale entries are left for Stale.
func (t *Tracker) Ready() (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.current + 1
	i := sort.Search(len(t.pending), func(i int) bool {
		return t.pending[i].Sequence >= target
	})
	if i == len(t.pending) || t.pending[i].Sequence != target {
		return Pending{}, false
	}

	p := t.pending[i]
	t.pending = append(t.pending[:i], t.pending[i+1:]...)
	return p, true
}

// Stale removes and returns queued submissions whose target has already
// been taken.
func (t *Tracker) Stale() []Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := sort.Search(len(t.pending), func(i int) bool {
		return t.pending[i].Sequence > t.current
	})
	stale := append([]Pending(nil), t.pending[:n]...)
	t.pending = t.pending[n:]
	return stale
}

// Append queues a submission behind every queued one, targeting the
// sequence after the highest of current and the last queued target.
func (t *Tracker) Append(id string, payload any) Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.current + 1
	if n := len(t.pending); n > 0 && t.pending[n-1].Sequence >= target {
		target = t.pending[n-1].Sequence + 1
	}
	p := Pending{ID: id, Sequence: target, Payload: payload}
	t.pending = append(t.pending, p)
	return p
}

// Renumber closes gaps left by submissions that never landed: queued
// targets are reassigned consecutively from current+1, keeping order.
func (t *Tracker) Renumber() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.pending {
		t.pending[i].Sequence = t.current + 1 + uint64(i)
	}
}

// Remove drops the queued submission with id. It reports false when no
// such entry is queued.
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range t.pending {
		if p.ID == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return true
		}
	}
	return false
}
