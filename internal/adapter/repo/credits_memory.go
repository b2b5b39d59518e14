package repo

import (
	"context"
	"sync"
	"time"

	"github.com/nollyai/studio-server/internal/domain"
)

// MemoryCreditLedger implements domain.CreditLedger in memory. The clock is
// injectable so cooldown boundaries can be tested without sleeping.
type MemoryCreditLedger struct {
	mu       sync.Mutex
	accounts map[string]*domain.CreditAccount
	now      func() time.Time
}

func NewMemoryCreditLedger() *MemoryCreditLedger {
	return &MemoryCreditLedger{
		accounts: make(map[string]*domain.CreditAccount),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the ledger clock. Intended for tests.
func (l *MemoryCreditLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryCreditLedger) Status(_ context.Context, user string) (domain.CreditStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account := l.ensureLocked(user)
	return account.Status(l.now()), nil
}

func (l *MemoryCreditLedger) ClaimFree(_ context.Context, user string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account := l.ensureLocked(user)
	now := l.now()
	if account.LastFreeClaimAt != nil && now.Sub(*account.LastFreeClaimAt) < domain.FreeClaimCooldown {
		return 0, domain.ErrAlreadyClaimed
	}
	account.CurrentBalance += domain.FreeClaimAmount
	claimedAt := now
	account.LastFreeClaimAt = &claimedAt
	account.UpdatedAt = now
	return account.CurrentBalance, nil
}

func (l *MemoryCreditLedger) Debit(_ context.Context, user string, amount int) error {
	if amount <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	account := l.ensureLocked(user)
	if account.CurrentBalance < amount {
		return domain.ErrInsufficientCredits
	}
	account.CurrentBalance -= amount
	account.CreditsUsed += amount
	account.UpdatedAt = l.now()
	return nil
}

func (l *MemoryCreditLedger) Credit(_ context.Context, user string, amount int) error {
	if amount <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	account := l.ensureLocked(user)
	account.CurrentBalance += amount
	account.UpdatedAt = l.now()
	return nil
}

// SetBalance pins a user's balance directly. Intended for tests.
func (l *MemoryCreditLedger) SetBalance(user string, balance int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account := l.ensureLocked(user)
	account.CurrentBalance = balance
}

func (l *MemoryCreditLedger) ensureLocked(user string) *domain.CreditAccount {
	account, ok := l.accounts[user]
	if !ok {
		now := l.now()
		account = &domain.CreditAccount{
			UserID:         user,
			CurrentBalance: domain.SignupGrant,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		l.accounts[user] = account
	}
	return account
}

var _ domain.CreditLedger = (*MemoryCreditLedger)(nil)
