package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nollyai/studio-server/internal/domain"
)

// LatencyClass groups plugins by expected run duration; the scheduler picks
// timeouts per class.
type LatencyClass string

const (
	ClassShort LatencyClass = "short"
	ClassLong  LatencyClass = "long"
)

// Outcome is the discriminated result of a plugin invocation. A terminal
// outcome carries exactly one of Result or ErrorMessage; a running outcome
// carries the opaque handle used for subsequent polls.
type Outcome struct {
	Status       domain.JobStatus
	Result       json.RawMessage
	ErrorMessage string
	Handle       string
}

// Completed builds a done outcome from any JSON-encodable result.
func Completed(result any) (Outcome, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode plugin result: %w", err)
	}
	return Outcome{Status: domain.JobStatusDone, Result: encoded}, nil
}

// Failed builds an error outcome.
func Failed(message string) Outcome {
	return Outcome{Status: domain.JobStatusError, ErrorMessage: message}
}

// InProgress builds a running outcome with the provider handle.
func InProgress(handle string) Outcome {
	return Outcome{Status: domain.JobStatusRunning, Handle: handle}
}

// Plugin is the capability behind one job type.
//
// Validate must stay cheap and local: transient failures belong inside Run so
// they surface as execution-time errors, not submission rejections.
type Plugin interface {
	Type() domain.JobType
	Class() LatencyClass
	Cost(payload json.RawMessage) int
	Validate(payload json.RawMessage) error
	Run(ctx context.Context, job *domain.Job) (Outcome, error)
}

// HandlePoller is implemented by long-running plugins whose Run returns a
// handle instead of a terminal outcome.
type HandlePoller interface {
	Poll(ctx context.Context, handle string) (Outcome, error)
}
