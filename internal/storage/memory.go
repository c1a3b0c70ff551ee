package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps submissions and checkpoints in process memory.
type MemoryRepository struct {
	submissions *memorySubmissions
	checkpoints *memoryCheckpoints
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		submissions: &memorySubmissions{byID: make(map[string]*SubmissionModel)},
		checkpoints: &memoryCheckpoints{byKey: make(map[string]CheckpointModel)},
	}
}

func (r *MemoryRepository) Submissions() SubmissionRepository { return r.submissions }
func (r *MemoryRepository) Checkpoints() CheckpointRepository { return r.checkpoints }
func (r *MemoryRepository) Close() error                      { return nil }
func (r *MemoryRepository) Ping(ctx context.Context) error    { return ctx.Err() }

type memorySubmissions struct {
	mu   sync.RWMutex
	byID map[string]*SubmissionModel
}

func (r *memorySubmissions) Save(ctx context.Context, submission *SubmissionModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *submission
	r.byID[submission.ID] = &cp
	return nil
}

func (r *memorySubmissions) FindByID(ctx context.Context, id string) (*SubmissionModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memorySubmissions) FindBySignature(ctx context.Context, signature string) (*SubmissionModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.Signature == signature {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memorySubmissions) FindBySequence(ctx context.Context, sequence uint64) ([]*SubmissionModel, error) {
	return r.filter(func(s *SubmissionModel) bool { return s.Sequence == sequence }, 0), nil
}

func (r *memorySubmissions) FindRecent(ctx context.Context, limit int) ([]*SubmissionModel, error) {
	return r.filter(func(*SubmissionModel) bool { return true }, limit), nil
}

// filter returns matches newest first, at most limit when limit > 0.
func (r *memorySubmissions) filter(keep func(*SubmissionModel) bool, limit int) []*SubmissionModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*SubmissionModel
	for _, s := range r.byID {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type memoryCheckpoints struct {
	mu    sync.RWMutex
	byKey map[string]CheckpointModel
}

func (r *memoryCheckpoints) LoadCheckpoint(ctx context.Context, key string) (uint64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp, ok := r.byKey[key]
	return cp.Sequence, ok, nil
}

func (r *memoryCheckpoints) SaveCheckpoint(ctx context.Context, key string, sequence uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cp, ok := r.byKey[key]; ok && cp.Sequence >= sequence {
		return nil
	}
	r.byKey[key] = CheckpointModel{Key: key, Sequence: sequence, UpdatedAt: time.Now().UTC()}
	return nil
}
