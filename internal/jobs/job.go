// Package jobs runs background work from a Redis queue. Handlers split their work into
// named steps whose results are checkpointed, so a retried job resumes after the last
// completed step.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypeBulkUpload   = "bulk_upload.process"
	TypeAutoRecharge = "credits.auto_recharge"
	TypeSegmentPull  = "segment.pull"
)

type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// DeadJob is a job that exhausted its attempts.
type DeadJob struct {
	Job      Job       `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func NewJob(jobType string, payload interface{}, maxAttempts int) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     raw,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}

// Decode unmarshals the job payload into dst and marks bad payloads as permanent.
func (j Job) Decode(dst interface{}) error {
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Type, err))
	}
	return nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks an error that retrying cannot fix; the job goes straight to the
// dead-letter list.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
