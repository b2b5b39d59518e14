package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nollyai/studio-server/internal/domain"
)

// CreditStatus returns the caller's balance and daily-claim eligibility.
func (a *App) CreditStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	status, err := a.Credits.Status(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load credit status")
		return
	}
	a.json(w, http.StatusOK, status)
}

// ClaimDailyCredits adds the daily grant, once per 24 hours.
func (a *App) ClaimDailyCredits(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.Credits.ClaimFree(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			status, statusErr := a.Credits.Status(r.Context(), userID)
			if statusErr != nil {
				a.error(w, http.StatusInternalServerError, "internal", "failed to load credit status")
				return
			}
			a.json(w, http.StatusConflict, map[string]any{
				"error":               "already_claimed",
				"seconds_until_reset": status.SecondsUntilReset,
			})
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to claim credits")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"new_balance": balance})
}

type purchaseRequest struct {
	Package string `json:"package"`
}

// ConfirmPurchase applies an external payment confirmation by crediting the
// purchased package amount. Payment verification happens upstream.
func (a *App) ConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	amount, ok := domain.CreditPackages[req.Package]
	if !ok {
		a.error(w, http.StatusBadRequest, "unknown_package", "unknown credit package "+req.Package)
		return
	}
	if err := a.Credits.Credit(r.Context(), userID, amount); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to apply purchase")
		return
	}
	status, err := a.Credits.Status(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load credit status")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"new_balance": status.CurrentBalance})
}
