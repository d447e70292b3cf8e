// Package notify defines the failure event shared by notification sinks.
package notify

import (
	"context"
	"time"
)

// Severity values understood by sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// StageLine is one row of the per-stage summary, in pipeline order.
type StageLine struct {
	Stage  string
	Status string
}

// JobFailurePayload describes a failed pipeline run.
type JobFailurePayload struct {
	JobID       string
	Repository  string
	SourceURL   string
	ReferenceID string
	FailedStage string
	Error       string
	ErrorClass  string
	Severity    string
	OccurredAt  time.Time
	Stages      []StageLine
	Metadata    map[string]string
}

// Sink receives failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure calls f. A nil SinkFunc does nothing.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
