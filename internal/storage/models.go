package storage

import (
	"time"
)

// SubmissionStatus is the last known outcome of a submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionRejected SubmissionStatus = "rejected"
	SubmissionUnknown  SubmissionStatus = "unknown"
)

// SubmissionModel records one wrapped swap request and its outcome.
type SubmissionModel struct {
	ID           string           `json:"id" bson:"_id" db:"id"`
	Pool         string           `json:"pool" bson:"pool" db:"pool"`
	User         string           `json:"user" bson:"user" db:"user_key"`
	AmountIn     uint64           `json:"amount_in" bson:"amount_in" db:"amount_in"`
	MinAmountOut uint64           `json:"min_amount_out" bson:"min_amount_out" db:"min_amount_out"`
	Sequence     uint64           `json:"sequence" bson:"sequence" db:"sequence"`
	Signature    string           `json:"signature,omitempty" bson:"signature,omitempty" db:"signature"`
	Status       SubmissionStatus `json:"status" bson:"status" db:"status"`
	Attempts     int              `json:"attempts" bson:"attempts" db:"attempts"`
	ErrorCode    string           `json:"error_code,omitempty" bson:"error_code,omitempty" db:"error_code"`
	ErrorMessage string           `json:"error_message,omitempty" bson:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time        `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// CheckpointModel is the last sequence observed under a key.
type CheckpointModel struct {
	Key       string    `json:"key" bson:"_id" db:"key"`
	Sequence  uint64    `json:"sequence" bson:"sequence" db:"sequence"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}
