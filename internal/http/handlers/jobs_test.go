package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nollyai/studio-server/internal/adapter/repo"
	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/middleware"
	"github.com/nollyai/studio-server/internal/plugin"
	"github.com/nollyai/studio-server/internal/poller"
	"github.com/nollyai/studio-server/internal/providers/anthropic"
	"github.com/nollyai/studio-server/internal/providers/openai"
	"github.com/nollyai/studio-server/internal/providers/replicate"
)

type testEnv struct {
	app     *App
	jobs    *repo.MemoryJobStore
	credits *repo.MemoryCreditLedger
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	jobs := repo.NewMemoryJobStore()
	credits := repo.NewMemoryCreditLedger()
	registry := plugin.NewRegistry(
		plugin.NewScriptBreakdown(anthropic.NewClient(anthropic.Options{})),
		plugin.NewChatAssistant(openai.NewClient(openai.Options{})),
		plugin.NewRoto(replicate.NewClient(replicate.Options{})),
	)
	app := &App{
		Jobs:         jobs,
		Credits:      credits,
		Registry:     registry,
		Logger:       zerolog.Nop(),
		WatchMaxWait: 50 * time.Millisecond,
	}

	router := chi.NewRouter()
	router.Use(middleware.Locale(nil))
	router.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.SubmitJob)
		r.Get("/", app.ListJobs)
		r.Get("/{job_id}", app.JobStatus)
		r.Get("/{job_id}/wait", app.WaitJob)
		r.Post("/{job_id}/retry", app.RetryJob)
	})
	router.Route("/v1/credits", func(r chi.Router) {
		r.Get("/", app.CreditStatus)
		r.Post("/claim", app.ClaimDailyCredits)
		r.Post("/purchase", app.ConfirmPurchase)
	})
	return &testEnv{app: app, jobs: jobs, credits: credits, router: router}
}

func (e *testEnv) request(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestSubmitJobDebitsAndQueues(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, "user-1", http.MethodPost, "/v1/jobs",
		`{"type":"script-breakdown","payload":{"script":"INT. SET - DAY","title":"Pilot"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("SubmitJob status = %d body %s, want 202", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		Cost    int    `json:"cost"`
		Balance int    `json:"balance"`
	}
	decodeBody(t, rec, &resp)
	if resp.Status != "pending" || resp.Cost != 5 {
		t.Fatalf("SubmitJob response = %+v", resp)
	}
	if resp.Balance != domain.SignupGrant-5 {
		t.Fatalf("SubmitJob balance = %d, want %d", resp.Balance, domain.SignupGrant-5)
	}

	job, err := env.jobs.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("Get() persisted job error: %v", err)
	}
	if job.Owner != "user-1" || job.Status != domain.JobStatusPending {
		t.Fatalf("persisted job = %+v", job)
	}
}

func TestSubmitJobStoresNegotiatedLocale(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"type":"chat-assistant","payload":{"message":"bawo ni"}}`))
	req.Header.Set("X-Locale", "yo")
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("SubmitJob status = %d body %s, want 202", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, rec, &resp)
	job, err := env.jobs.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("Get() persisted job error: %v", err)
	}
	if job.Locale != "yo" {
		t.Fatalf("persisted job locale = %q, want yo", job.Locale)
	}

	// without any locale signal the job defaults to English
	rec = env.request(t, "user-1", http.MethodPost, "/v1/jobs", `{"type":"chat-assistant","payload":{"message":"hi"}}`)
	decodeBody(t, rec, &resp)
	job, _ = env.jobs.Get(context.Background(), resp.JobID)
	if job.Locale != "en" {
		t.Fatalf("persisted job locale = %q, want en", job.Locale)
	}
}

func TestSubmitJobUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, "user-1", http.MethodPost, "/v1/jobs", `{"type":"hologram","payload":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("SubmitJob status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "unsupported_job_type" {
		t.Fatalf("SubmitJob error = %q", resp["error"])
	}
	// a rejected submission must not touch the balance
	status, _ := env.credits.Status(context.Background(), "user-1")
	if status.CurrentBalance != domain.SignupGrant {
		t.Fatalf("balance after rejection = %d, want untouched %d", status.CurrentBalance, domain.SignupGrant)
	}
}

func TestSubmitJobInvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, "user-1", http.MethodPost, "/v1/jobs", `{"type":"roto","payload":{"subject":"lead"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("SubmitJob status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "invalid_payload" {
		t.Fatalf("SubmitJob error = %q", resp["error"])
	}
	status, _ := env.credits.Status(context.Background(), "user-1")
	if status.CurrentBalance != domain.SignupGrant {
		t.Fatalf("balance after invalid payload = %d, want untouched", status.CurrentBalance)
	}
}

func TestSubmitJobInsufficientCredits(t *testing.T) {
	env := newTestEnv(t)
	env.credits.SetBalance("user-1", 3)

	rec := env.request(t, "user-1", http.MethodPost, "/v1/jobs",
		`{"type":"script-breakdown","payload":{"script":"INT. SET - DAY"}}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("SubmitJob status = %d, want 402", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "insufficient_credits" {
		t.Fatalf("SubmitJob error = %q", resp["error"])
	}

	// nothing was persisted and nothing was charged
	jobs, _ := env.jobs.ListByOwner(context.Background(), "user-1", 10)
	if len(jobs) != 0 {
		t.Fatalf("refused submission still created %d jobs", len(jobs))
	}
	status, _ := env.credits.Status(context.Background(), "user-1")
	if status.CurrentBalance != 3 {
		t.Fatalf("balance after refusal = %d, want 3", status.CurrentBalance)
	}
}

func TestSubmitJobRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, "", http.MethodPost, "/v1/jobs", `{"type":"chat-assistant","payload":{"message":"hi"}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("SubmitJob status = %d, want 401", rec.Code)
	}
}

func TestJobStatusScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	job := &domain.Job{Owner: "user-1", Type: domain.JobTypeChatAssistant, Payload: json.RawMessage(`{"message":"hi"}`)}
	if err := env.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	rec := env.request(t, "user-1", http.MethodGet, "/v1/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("JobStatus status = %d, want 200", rec.Code)
	}
	var dto jobDTO
	decodeBody(t, rec, &dto)
	if dto.ID != job.ID || dto.Status != "pending" {
		t.Fatalf("JobStatus body = %+v", dto)
	}

	// another user sees not found, not forbidden
	rec = env.request(t, "user-2", http.MethodGet, "/v1/jobs/"+job.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("JobStatus foreign owner status = %d, want 404", rec.Code)
	}
}

func TestRetryJobOnlyFromError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job := &domain.Job{Owner: "user-1", Type: domain.JobTypeChatAssistant, Payload: json.RawMessage(`{"message":"hi"}`)}
	if err := env.jobs.Create(ctx, job); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	rec := env.request(t, "user-1", http.MethodPost, "/v1/jobs/"+job.ID+"/retry", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("RetryJob pending status = %d, want 409", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "not_failed" {
		t.Fatalf("RetryJob error = %q", resp["error"])
	}

	if _, err := env.jobs.ClaimPending(ctx, 1); err != nil {
		t.Fatalf("ClaimPending() unexpected error: %v", err)
	}
	if err := env.jobs.MarkError(ctx, job.ID, "model unavailable"); err != nil {
		t.Fatalf("MarkError() unexpected error: %v", err)
	}

	before, _ := env.credits.Status(ctx, "user-1")
	rec = env.request(t, "user-1", http.MethodPost, "/v1/jobs/"+job.ID+"/retry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("RetryJob status = %d body %s, want 200", rec.Code, rec.Body.String())
	}
	after, _ := env.credits.Status(ctx, "user-1")
	if before.CurrentBalance != after.CurrentBalance {
		t.Fatalf("RetryJob changed balance from %d to %d, retries are free", before.CurrentBalance, after.CurrentBalance)
	}

	retried, _ := env.jobs.Get(ctx, job.ID)
	if retried.Status != domain.JobStatusPending || retried.ErrorMessage != "" {
		t.Fatalf("RetryJob left job %+v", retried)
	}
}

func TestWaitJobReturnsTerminalImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	job := &domain.Job{Owner: "user-1", Type: domain.JobTypeChatAssistant, Payload: json.RawMessage(`{"message":"hi"}`)}
	if err := env.jobs.Create(ctx, job); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if _, err := env.jobs.ClaimPending(ctx, 1); err != nil {
		t.Fatalf("ClaimPending() unexpected error: %v", err)
	}
	if err := env.jobs.MarkDone(ctx, job.ID, json.RawMessage(`{"reply":"ok"}`)); err != nil {
		t.Fatalf("MarkDone() unexpected error: %v", err)
	}

	start := time.Now()
	rec := env.request(t, "user-1", http.MethodGet, "/v1/jobs/"+job.ID+"/wait", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("WaitJob status = %d, want 200", rec.Code)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("WaitJob blocked %v on an already terminal job", elapsed)
	}
	var dto jobDTO
	decodeBody(t, rec, &dto)
	if dto.Status != "done" {
		t.Fatalf("WaitJob status field = %q, want done", dto.Status)
	}
}

func TestWaitJobObservesCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.app.Watcher = poller.NewWatcher(env.jobs.GetMany, 5*time.Millisecond, zerolog.Nop())
	env.app.WatchMaxWait = 2 * time.Second

	job := &domain.Job{Owner: "user-1", Type: domain.JobTypeChatAssistant, Payload: json.RawMessage(`{"message":"hi"}`)}
	if err := env.jobs.Create(ctx, job); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		if _, err := env.jobs.ClaimPending(ctx, 1); err != nil {
			t.Errorf("ClaimPending() unexpected error: %v", err)
			return
		}
		if err := env.jobs.MarkDone(ctx, job.ID, json.RawMessage(`{"reply":"ok"}`)); err != nil {
			t.Errorf("MarkDone() unexpected error: %v", err)
		}
	}()

	rec := env.request(t, "user-1", http.MethodGet, "/v1/jobs/"+job.ID+"/wait", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("WaitJob status = %d, want 200", rec.Code)
	}
	var dto jobDTO
	decodeBody(t, rec, &dto)
	if dto.Status != "done" {
		t.Fatalf("WaitJob observed status %q, want done", dto.Status)
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		rec := env.request(t, "user-1", http.MethodPost, "/v1/jobs",
			`{"type":"chat-assistant","payload":{"message":"hi"}}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("SubmitJob status = %d", rec.Code)
		}
	}

	rec := env.request(t, "user-1", http.MethodGet, "/v1/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ListJobs status = %d, want 200", rec.Code)
	}
	var resp struct {
		Items []jobDTO `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 3 {
		t.Fatalf("ListJobs returned %d items, want 3", len(resp.Items))
	}
}
