package domain

import (
	"encoding/json"
	"time"
)

// JobType selects the plugin that executes a job.
type JobType string

const (
	JobTypeScriptBreakdown JobType = "script-breakdown"
	JobTypeRoto            JobType = "roto"
	JobTypeColorGrade      JobType = "color-grade"
	JobTypeAudioCleanup    JobType = "audio-cleanup"
	JobTypeMeshGeneration  JobType = "mesh-generation"
	JobTypeChatAssistant   JobType = "chat-assistant"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Job is the durable record of one requested unit of asynchronous work.
// Payload is immutable after creation; Result and ErrorMessage are mutually
// exclusive and only populated in a terminal state. Handle carries the
// provider-side identifier of a long-running invocation while the job is
// running. Locale is the notification language negotiated at submission,
// carried on the record so the worker can localize terminal notifications
// without a request context.
type Job struct {
	ID           string
	Owner        string
	Type         JobType
	Payload      json.RawMessage
	Status       JobStatus
	Result       json.RawMessage
	ErrorMessage string
	Handle       string
	Locale       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Terminal reports whether no further automatic transitions can occur.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError
}

var legalTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusPending: {JobStatusRunning: true},
	JobStatusRunning: {JobStatusDone: true, JobStatusError: true},
	JobStatusError:   {JobStatusPending: true}, // owner-initiated retry only
	JobStatusDone:    {},
}

// CanTransition reports whether moving a job from one status to another is
// legal. Stores reject anything outside this table with ErrInvalidTransition.
func CanTransition(from, to JobStatus) bool {
	return legalTransitions[from][to]
}
