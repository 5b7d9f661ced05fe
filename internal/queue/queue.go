package queue

import (
	"context"
	"encoding/json"
	"time"
)

// JobType names a queue. Every job on a queue has the same payload shape.
type JobType string

const (
	// JobTypeCommissionEvent applies a commission batch for a business event
	JobTypeCommissionEvent JobType = "commission_event"
	// JobTypeExcellenceEvaluation re-evaluates milestone unlocks for users
	JobTypeExcellenceEvaluation JobType = "excellence_evaluation"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Default values
const (
	DefaultRetryCount = 5
	DefaultTTL        = 24 * time.Hour
)

// Job represents a background job
type Job struct {
	ID         string          `json:"id"`
	Queue      JobType         `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	RunAt      time.Time       `json:"run_at"`
}

// Decode unmarshals the job payload into v
func (j *Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// JobHandler processes a job. A returned error schedules a retry.
type JobHandler func(ctx context.Context, job *Job) error

// Enqueuer is the producer side of the queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName JobType, payload interface{}, opts ...EnqueueOption) (string, error)
}

// EnqueueOption defines options for enqueueing jobs
type EnqueueOption func(*Job)

// WithMaxRetries sets the maximum number of retries for a job
func WithMaxRetries(maxRetries int) EnqueueOption {
	return func(j *Job) {
		j.MaxRetries = maxRetries
	}
}

// WithJobID sets a specific job ID
func WithJobID(id string) EnqueueOption {
	return func(j *Job) {
		j.ID = id
	}
}

// QueueStats represents statistics for a queue
type QueueStats struct {
	Queue   JobType `json:"queue"`
	Waiting int64   `json:"waiting"`
	Delayed int64   `json:"delayed"`
	Failed  int64   `json:"failed"`
}
