package queue

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionEventPayload is the payload of JobTypeCommissionEvent
type CommissionEventPayload struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	SourceUserID uuid.UUID       `json:"source_user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note,omitempty"`
}

// ExcellenceEvaluationPayload is the payload of JobTypeExcellenceEvaluation
type ExcellenceEvaluationPayload struct {
	UserIDs []uuid.UUID `json:"user_ids"`
}

// retryPolicy spaces job retries 5s apart, doubling up to an hour, each
// delay jittered by ±20%.
func retryPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Second
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.2
	policy.MaxInterval = time.Hour
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}

// calculateBackoff returns the delay before the given retry attempt
func calculateBackoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > 16 {
		retry = 16
	}
	policy := retryPolicy()
	delay := policy.NextBackOff()
	for i := 0; i < retry; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}
