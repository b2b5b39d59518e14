package handlers

import (
	"net/http"

	"github.com/nollyai/studio-server/internal/sqlinline"
)

// StatsSummary reports system-wide job and credit counters.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	if a.SQL == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "stats require the database")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QStatsSummary)
	var total, pending, running, done, failed, completed24h, creditsUsed int64
	if err := row.Scan(&total, &pending, &running, &done, &failed, &completed24h, &creditsUsed); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobs_total":         total,
		"jobs_pending":       pending,
		"jobs_running":       running,
		"jobs_done":          done,
		"jobs_error":         failed,
		"jobs_completed_24h": completed24h,
		"credits_used_total": creditsUsed,
	})
}
