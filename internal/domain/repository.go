package domain

import (
	"context"
	"encoding/json"
)

// JobStore is the single source of truth for job state. Implementations must
// enforce the transition table from CanTransition with conditional updates so
// concurrent schedulers cannot double-claim or regress a job.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	GetMany(ctx context.Context, ids []string) ([]*Job, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]*Job, error)
	ListPending(ctx context.Context, limit int) ([]*Job, error)

	// ClaimPending atomically transitions up to limit pending jobs to
	// running, oldest first, and returns the claimed jobs. A job already
	// claimed elsewhere is simply not returned.
	ClaimPending(ctx context.Context, limit int) ([]*Job, error)

	SetHandle(ctx context.Context, id, handle string) error
	MarkDone(ctx context.Context, id string, result json.RawMessage) error
	MarkError(ctx context.Context, id, message string) error

	// Retry resets an errored job back to pending, clearing its result,
	// error message, handle and completion timestamp. Any other current
	// status yields ErrInvalidTransition.
	Retry(ctx context.Context, id string) error
}

// CreditLedger tracks per-user balances. All mutations are atomic with
// respect to concurrent mutations on the same user.
type CreditLedger interface {
	Status(ctx context.Context, user string) (CreditStatus, error)
	ClaimFree(ctx context.Context, user string) (int, error)
	Debit(ctx context.Context, user string, amount int) error
	Credit(ctx context.Context, user string, amount int) error
}
