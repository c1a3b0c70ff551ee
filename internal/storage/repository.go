package storage

import (
	"context"
)

type SubmissionRepository interface {
	// Save inserts or replaces the submission with the same ID.
	Save(ctx context.Context, submission *SubmissionModel) error
	FindByID(ctx context.Context, id string) (*SubmissionModel, error)
	FindBySignature(ctx context.Context, signature string) (*SubmissionModel, error)
	FindBySequence(ctx context.Context, sequence uint64) ([]*SubmissionModel, error)
	FindRecent(ctx context.Context, limit int) ([]*SubmissionModel, error)
}

// CheckpointRepository persists observed sequences. Saving never lowers a
// stored value.
type CheckpointRepository interface {
	LoadCheckpoint(ctx context.Context, key string) (uint64, bool, error)
	SaveCheckpoint(ctx context.Context, key string, sequence uint64) error
}

type Repository interface {
	Submissions() SubmissionRepository
	Checkpoints() CheckpointRepository
	Close() error
	Ping(ctx context.Context) error
}
