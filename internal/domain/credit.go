package domain

import "time"

const (
	// SignupGrant is credited when an account row is first materialized.
	SignupGrant = 100
	// FreeClaimAmount is added by each successful daily claim.
	FreeClaimAmount = 50
	// FreeClaimCooldown gates daily claims from the last successful one.
	FreeClaimCooldown = 24 * time.Hour
)

// CreditPackages maps purchasable package names to token amounts. Purchase
// confirmation is an external payment event; the ledger only applies the add.
var CreditPackages = map[string]int{
	"starter": 100,
	"pro":     500,
	"studio":  2000,
}

// CreditStatus is the read model returned to clients.
type CreditStatus struct {
	CurrentBalance    int   `json:"current_balance"`
	CreditsUsed       int   `json:"credits_used"`
	CanClaimFree      bool  `json:"can_claim_free"`
	SecondsUntilReset int64 `json:"seconds_until_reset"`
}

// CreditAccount is the persisted per-user balance row.
type CreditAccount struct {
	UserID          string
	CurrentBalance  int
	CreditsUsed     int
	LastFreeClaimAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status derives the client-facing view at the given instant.
func (a *CreditAccount) Status(now time.Time) CreditStatus {
	s := CreditStatus{
		CurrentBalance: a.CurrentBalance,
		CreditsUsed:    a.CreditsUsed,
		CanClaimFree:   true,
	}
	if a.LastFreeClaimAt != nil {
		resetAt := a.LastFreeClaimAt.Add(FreeClaimCooldown)
		if now.Before(resetAt) {
			s.CanClaimFree = false
			s.SecondsUntilReset = int64(resetAt.Sub(now).Seconds())
		}
	}
	return s
}
