package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/go-continuum/internal/storage"
)

const submissionColumns = `id, pool, user_key, amount_in, min_amount_out, sequence, signature, status,
	attempts, error_code, error_message, created_at, updated_at`

type postgresSubmissionRepository struct {
	pool *pgxpool.Pool
}

func (r *postgresSubmissionRepository) Save(ctx context.Context, s *storage.SubmissionModel) error {
	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			sequence = $6, signature = $7, status = $8, attempts = $9,
			error_code = $10, error_message = $11, updated_at = $13
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Pool, s.User, s.AmountIn, s.MinAmountOut, s.Sequence, s.Signature, string(s.Status),
		s.Attempts, s.ErrorCode, s.ErrorMessage, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func scanSubmission(row pgx.Row) (*storage.SubmissionModel, error) {
	var (
		s                                   storage.SubmissionModel
		status                              string
		signature, errorCode, errorMessage *string
	)
	if err := row.Scan(
		&s.ID, &s.Pool, &s.User, &s.AmountIn, &s.MinAmountOut, &s.Sequence, &signature, &status,
		&s.Attempts, &errorCode, &errorMessage, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = storage.SubmissionStatus(status)
	if signature != nil {
		s.Signature = *signature
	}
	if errorCode != nil {
		s.ErrorCode = *errorCode
	}
	if errorMessage != nil {
		s.ErrorMessage = *errorMessage
	}
	return &s, nil
}

func scanSubmissionRows(rows pgx.Rows) (*storage.SubmissionModel, error) {
	return scanSubmission(rows)
}

func (r *postgresSubmissionRepository) findOne(ctx context.Context, query string, arg any) (*storage.SubmissionModel, error) {
	s, err := QueryOne(r.pool, ctx, query, scanSubmission, arg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *postgresSubmissionRepository) FindByID(ctx context.Context, id string) (*storage.SubmissionModel, error) {
	return r.findOne(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
}

func (r *postgresSubmissionRepository) FindBySignature(ctx context.Context, signature string) (*storage.SubmissionModel, error) {
	return r.findOne(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE signature = $1`, signature)
}

func (r *postgresSubmissionRepository) FindBySequence(ctx context.Context, sequence uint64) ([]*storage.SubmissionModel, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE sequence = $1 ORDER BY created_at DESC`
	return QueryMany(r.pool, ctx, query, scanSubmissionRows, sequence)
}

func (r *postgresSubmissionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.SubmissionModel, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions ORDER BY created_at DESC LIMIT $1`
	return QueryMany(r.pool, ctx, query, scanSubmissionRows, limit)
}

type postgresCheckpointRepository struct {
	pool *pgxpool.Pool
}

func (r *postgresCheckpointRepository) LoadCheckpoint(ctx context.Context, key string) (uint64, bool, error) {
	var sequence uint64
	err := r.pool.QueryRow(ctx, `SELECT sequence FROM sequence_checkpoints WHERE key = $1`, key).Scan(&sequence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return sequence, true, nil
}

func (r *postgresCheckpointRepository) SaveCheckpoint(ctx context.Context, key string, sequence uint64) error {
	query := `
		INSERT INTO sequence_checkpoints (key, sequence, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			sequence = GREATEST(sequence_checkpoints.sequence, EXCLUDED.sequence),
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, key, sequence, time.Now().UTC())
	return err
}
