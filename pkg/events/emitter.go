// Package events handles event emission for pipeline run lifecycle changes
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes run lifecycle events. A nil producer disables emission,
// and publish failures never fail the run itself.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunStarted announces that a run has begun.
func (e *Emitter) EmitRunStarted(ctx context.Context, runID string, job string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	e.publish(ctx, &kafka.RunEvent{
		EventType: string(EventTypeRunStarted),
		RunID:     runID,
		Job:       job,
	})
}

// EmitRunCompleted announces a successful run with its row counts.
func (e *Emitter) EmitRunCompleted(ctx context.Context, runID string, job string, counts map[string]int, duration time.Duration) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	e.publish(ctx, &kafka.RunEvent{
		EventType:  string(EventTypeRunCompleted),
		RunID:      runID,
		Job:        job,
		Counts:     counts,
		DurationMS: duration.Milliseconds(),
	})
}

// EmitRunFailed announces a failed run with the terminal error.
func (e *Emitter) EmitRunFailed(ctx context.Context, runID string, job string, runErr error, duration time.Duration) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunFailed")
	defer span.End()

	event := &kafka.RunEvent{
		EventType:  string(EventTypeRunFailed),
		RunID:      runID,
		Job:        job,
		DurationMS: duration.Milliseconds(),
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	e.publish(ctx, event)
}

func (e *Emitter) publish(ctx context.Context, event *kafka.RunEvent) {
	event.SchemaVersion = SchemaVersion
	if e == nil || e.producer == nil {
		return
	}
	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": event.EventType,
			"run_id":     event.RunID,
		}).Error("Failed to emit run event")
	}
}
