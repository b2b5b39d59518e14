package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/sqlinline"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// fakeSQL scripts responses per inline query constant.
type fakeSQL struct {
	execTags map[string]pgconn.CommandTag
	rows     map[string]simpleRow
}

func (f *fakeSQL) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	if tag, ok := f.execTags[query]; ok {
		return tag, nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeSQL) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	if row, ok := f.rows[query]; ok {
		return row
	}
	return simpleRow{}
}

func (f *fakeSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("query not scripted")
}

func scanAccountRow(balance int) simpleRow {
	return simpleRow{scan: func(dest ...any) error {
		now := time.Now().UTC()
		*(dest[0].(*string)) = "user-1"
		*(dest[1].(*int)) = balance
		*(dest[2].(*int)) = 0
		*(dest[3].(**time.Time)) = nil
		*(dest[4].(*time.Time)) = now
		*(dest[5].(*time.Time)) = now
		return nil
	}}
}

func TestCreditLedgerPGDebitInsufficient(t *testing.T) {
	sql := &fakeSQL{rows: map[string]simpleRow{
		sqlinline.QSelectCreditAccount: scanAccountRow(3),
		// QDebitCredits intentionally unscripted: the conditional update
		// matched no row, which pgx reports as ErrNoRows.
	}}
	ledger := NewCreditLedger(sql)

	err := ledger.Debit(context.Background(), "user-1", 5)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("Debit() error = %v, want ErrInsufficientCredits", err)
	}
}

func TestCreditLedgerPGDebitSuccess(t *testing.T) {
	sql := &fakeSQL{rows: map[string]simpleRow{
		sqlinline.QSelectCreditAccount: scanAccountRow(100),
		sqlinline.QDebitCredits: {scan: func(dest ...any) error {
			*(dest[0].(*int)) = 95
			return nil
		}},
	}}
	ledger := NewCreditLedger(sql)

	if err := ledger.Debit(context.Background(), "user-1", 5); err != nil {
		t.Fatalf("Debit() unexpected error: %v", err)
	}
}

func TestCreditLedgerPGClaimFreeInCooldown(t *testing.T) {
	sql := &fakeSQL{rows: map[string]simpleRow{
		sqlinline.QSelectCreditAccount: scanAccountRow(150),
	}}
	ledger := NewCreditLedger(sql)

	_, err := ledger.ClaimFree(context.Background(), "user-1")
	if !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("ClaimFree() error = %v, want ErrAlreadyClaimed", err)
	}
}

func TestJobStorePGMarkDoneRequiresRunning(t *testing.T) {
	sql := &fakeSQL{execTags: map[string]pgconn.CommandTag{
		sqlinline.QMarkJobDone: pgconn.NewCommandTag("UPDATE 0"),
	}}
	store := NewJobStore(sql)

	err := store.MarkDone(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("MarkDone() error = %v, want ErrInvalidTransition", err)
	}
}

func TestJobStorePGRetryMissingJob(t *testing.T) {
	sql := &fakeSQL{execTags: map[string]pgconn.CommandTag{
		sqlinline.QRetryJob: pgconn.NewCommandTag("UPDATE 0"),
	}}
	store := NewJobStore(sql)

	// nothing updated and the follow-up select finds no row
	err := store.Retry(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Retry() error = %v, want ErrNotFound", err)
	}
}

func TestJobStorePGGetNotFound(t *testing.T) {
	store := NewJobStore(&fakeSQL{})
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}
