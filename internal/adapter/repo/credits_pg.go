package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/sqlinline"
)

// CreditLedgerPG implements domain.CreditLedger backed by PostgreSQL. Every
// mutation is a single conditional statement, so concurrent submissions for
// the same user cannot lose updates or drive the balance negative.
type CreditLedgerPG struct {
	sql infra.SQLExecutor
}

func NewCreditLedger(sql infra.SQLExecutor) *CreditLedgerPG {
	return &CreditLedgerPG{sql: sql}
}

func (l *CreditLedgerPG) Status(ctx context.Context, user string) (domain.CreditStatus, error) {
	account, err := l.ensure(ctx, user)
	if err != nil {
		return domain.CreditStatus{}, err
	}
	return account.Status(time.Now().UTC()), nil
}

func (l *CreditLedgerPG) ClaimFree(ctx context.Context, user string) (int, error) {
	if _, err := l.ensure(ctx, user); err != nil {
		return 0, err
	}
	cooldown := int(domain.FreeClaimCooldown / time.Second)
	row := l.sql.QueryRow(ctx, sqlinline.QClaimFreeCredits, user, domain.FreeClaimAmount, cooldown)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrAlreadyClaimed
		}
		return 0, fmt.Errorf("claim free credits: %w", err)
	}
	return balance, nil
}

func (l *CreditLedgerPG) Debit(ctx context.Context, user string, amount int) error {
	if amount <= 0 {
		return nil
	}
	if _, err := l.ensure(ctx, user); err != nil {
		return err
	}
	row := l.sql.QueryRow(ctx, sqlinline.QDebitCredits, user, amount)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrInsufficientCredits
		}
		return fmt.Errorf("debit credits: %w", err)
	}
	return nil
}

func (l *CreditLedgerPG) Credit(ctx context.Context, user string, amount int) error {
	if amount <= 0 {
		return nil
	}
	if _, err := l.ensure(ctx, user); err != nil {
		return err
	}
	row := l.sql.QueryRow(ctx, sqlinline.QAddCredits, user, amount)
	var balance int
	if err := row.Scan(&balance); err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return nil
}

func (l *CreditLedgerPG) ensure(ctx context.Context, user string) (*domain.CreditAccount, error) {
	if _, err := l.sql.Exec(ctx, sqlinline.QEnsureCreditAccount, user, domain.SignupGrant); err != nil {
		return nil, fmt.Errorf("ensure credit account: %w", err)
	}
	row := l.sql.QueryRow(ctx, sqlinline.QSelectCreditAccount, user)
	var account domain.CreditAccount
	err := row.Scan(
		&account.UserID,
		&account.CurrentBalance,
		&account.CreditsUsed,
		&account.LastFreeClaimAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query credit account: %w", err)
	}
	return &account, nil
}

var _ domain.CreditLedger = (*CreditLedgerPG)(nil)
