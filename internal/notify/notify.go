package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/sqlinline"
)

// ChannelJobs is the Redis channel carrying job lifecycle events. The worker
// also listens on it to claim freshly queued jobs without waiting a full
// polling interval.
const ChannelJobs = "nollyai:jobs"

const emitTimeout = 2 * time.Second

// Emitter translates job transitions into user-visible notifications. All
// implementations are best-effort: they never fail or delay the transition.
type Emitter interface {
	JobQueued(ctx context.Context, job *domain.Job)
	JobFinished(ctx context.Context, job *domain.Job)
}

// Event is the payload published to Redis and stored per notification.
type Event struct {
	JobID   string           `json:"job_id"`
	Owner   string           `json:"owner"`
	Type    domain.JobType   `json:"type"`
	Status  domain.JobStatus `json:"status"`
	Message string           `json:"message"`
}

// Notifier records notifications in Postgres and publishes them to Redis.
// Either sink may be absent; failures are logged and swallowed.
type Notifier struct {
	sql     infra.SQLExecutor
	redis   *redis.Client
	logger  infra.Logger
	channel string
}

func NewNotifier(sql infra.SQLExecutor, redisClient *redis.Client, logger infra.Logger) *Notifier {
	return &Notifier{sql: sql, redis: redisClient, logger: logger, channel: ChannelJobs}
}

// copyCatalog holds notification copy per locale and event type. Locales
// without an entry fall back to English.
var copyCatalog = map[string]map[string]string{
	"en": {
		"job.queued": "Your %s job was queued.",
		"job.done":   "Your %s job finished.",
		"job.error":  "Your %s job failed: %s",
	},
	"pcm": {
		"job.queued": "Your %s job don enter queue.",
		"job.done":   "Your %s job don finish.",
		"job.error":  "Your %s job no gree work: %s",
	},
	"yo": {
		"job.queued": "Iṣẹ́ %s rẹ ti wọ ìtòlẹ́sẹẹsẹ.",
		"job.done":   "Iṣẹ́ %s rẹ ti parí.",
		"job.error":  "Iṣẹ́ %s rẹ kùnà: %s",
	},
	"ig": {
		"job.queued": "Ọrụ %s gị abanyela n'ahịrị.",
		"job.done":   "Ọrụ %s gị agwụchaala.",
		"job.error":  "Ọrụ %s gị adaala: %s",
	},
	"ha": {
		"job.queued": "An jera aikin %s naka.",
		"job.done":   "Aikin %s naka ya kammala.",
		"job.error":  "Aikin %s naka ya gaza: %s",
	},
}

// localizedCopy renders the notification message in the locale the job was
// submitted under.
func localizedCopy(job *domain.Job, eventType string) string {
	templates, ok := copyCatalog[job.Locale]
	if !ok {
		templates = copyCatalog["en"]
	}
	tmpl, ok := templates[eventType]
	if !ok {
		tmpl = copyCatalog["en"][eventType]
	}
	if eventType == "job.error" {
		return fmt.Sprintf(tmpl, job.Type, job.ErrorMessage)
	}
	return fmt.Sprintf(tmpl, job.Type)
}

func (n *Notifier) JobQueued(ctx context.Context, job *domain.Job) {
	n.emit(ctx, job, localizedCopy(job, "job.queued"), "job.queued", true)
}

func (n *Notifier) JobFinished(ctx context.Context, job *domain.Job) {
	switch job.Status {
	case domain.JobStatusDone:
		n.emit(ctx, job, localizedCopy(job, "job.done"), "job.done", true)
	case domain.JobStatusError:
		n.emit(ctx, job, localizedCopy(job, "job.error"), "job.error", false)
	}
}

func (n *Notifier) emit(ctx context.Context, job *domain.Job, message, eventType string, success bool) {
	// Detached from the caller's deadline: a finished transition must not
	// block on notification sinks.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	if n.sql != nil {
		if _, err := n.sql.Exec(ctx, sqlinline.QInsertNotification, job.Owner, job.ID, eventType, message); err != nil {
			n.logger.Error().Err(err).Str("job_id", job.ID).Msg("notify: insert notification failed")
		}
		props, _ := json.Marshal(map[string]any{"job_type": job.Type, "status": job.Status})
		if _, err := n.sql.Exec(ctx, sqlinline.QInsertUsageEvent, job.Owner, job.ID, eventType, success, props); err != nil {
			n.logger.Error().Err(err).Str("job_id", job.ID).Msg("notify: insert usage event failed")
		}
	}

	if n.redis != nil {
		payload, err := json.Marshal(Event{
			JobID:   job.ID,
			Owner:   job.Owner,
			Type:    job.Type,
			Status:  job.Status,
			Message: message,
		})
		if err == nil {
			err = n.redis.Publish(ctx, n.channel, payload).Err()
		}
		if err != nil {
			n.logger.Error().Err(err).Str("job_id", job.ID).Msg("notify: redis publish failed")
		}
	}
}

// NopEmitter discards events. Used where no sinks are configured and in tests.
type NopEmitter struct{}

func (NopEmitter) JobQueued(context.Context, *domain.Job)   {}
func (NopEmitter) JobFinished(context.Context, *domain.Job) {}

var (
	_ Emitter = (*Notifier)(nil)
	_ Emitter = NopEmitter{}
)
