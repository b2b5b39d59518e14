package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/middleware"
	"github.com/nollyai/studio-server/internal/notify"
	"github.com/nollyai/studio-server/internal/plugin"
	"github.com/nollyai/studio-server/internal/poller"
)

// App bundles the dependencies shared by all handlers.
type App struct {
	Jobs     domain.JobStore
	Credits  domain.CreditLedger
	Registry *plugin.Registry
	Emitter  notify.Emitter
	Watcher  *poller.Watcher
	SQL      infra.SQLExecutor
	Logger   infra.Logger

	// WatchMaxWait bounds the long-poll wait endpoint.
	WatchMaxWait time.Duration
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) emitter() notify.Emitter {
	if a.Emitter == nil {
		return notify.NopEmitter{}
	}
	return a.Emitter
}
