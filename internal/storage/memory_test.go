package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-continuum/internal/config"
)

func TestMemorySubmissions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Submissions().Save(ctx, &SubmissionModel{
			ID:        id,
			Sequence:  uint64(i + 1),
			Signature: "sig-" + id,
			Status:    SubmissionPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := repo.Submissions().FindByID(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(2), got.Sequence)

	got.Status = SubmissionAccepted
	require.NoError(t, repo.Submissions().Save(ctx, got))
	again, err := repo.Submissions().FindBySignature(ctx, "sig-b")
	require.NoError(t, err)
	assert.Equal(t, SubmissionAccepted, again.Status)

	missing, err := repo.Submissions().FindByID(ctx, "zz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	recent, err := repo.Submissions().FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	bySeq, err := repo.Submissions().FindBySequence(ctx, 3)
	require.NoError(t, err)
	require.Len(t, bySeq, 1)
	assert.Equal(t, "c", bySeq[0].ID)
}

func TestMemoryCheckpointsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	cps := NewMemoryRepository().Checkpoints()

	_, ok, err := cps.LoadCheckpoint(ctx, "fifo")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cps.SaveCheckpoint(ctx, "fifo", 7))
	require.NoError(t, cps.SaveCheckpoint(ctx, "fifo", 3))

	seq, ok, err := cps.LoadCheckpoint(ctx, "fifo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), seq)
}

func TestConnectionManagerFallsBackToMemory(t *testing.T) {
	cm := NewConnectionManager(&config.DatabaseConfig{Enabled: false, Type: "postgres"})

	_, err := cm.GetRepository()
	assert.Error(t, err)

	repo, err := cm.Connect(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	same, err := cm.GetRepository()
	require.NoError(t, err)
	assert.Same(t, repo, same)
	assert.NoError(t, cm.Close())
}

func TestConnectionManagerRejectsUnknownType(t *testing.T) {
	cm := NewConnectionManager(&config.DatabaseConfig{Enabled: true, Type: "sqlite"})
	_, err := cm.Connect(context.Background())
	assert.Error(t, err)
}
