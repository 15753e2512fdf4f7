package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kafka"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestPublishStampsSchemaVersion(t *testing.T) {
	emitter := NewEmitter(nil, testLogger())

	event := &kafka.RunEvent{
		EventType: string(EventTypeRunCompleted),
		RunID:     "run-1",
		Job:       "warehouse",
	}
	emitter.publish(context.Background(), event)

	assert.Equal(t, SchemaVersion, event.SchemaVersion)
}

func TestEmitWithoutProducerIsNoOp(t *testing.T) {
	emitter := NewEmitter(nil, testLogger())
	ctx := context.Background()

	require.NotPanics(t, func() {
		emitter.EmitRunStarted(ctx, "run-1", "warehouse")
		emitter.EmitRunCompleted(ctx, "run-1", "warehouse", map[string]int{"facts": 3}, time.Second)
		emitter.EmitRunFailed(ctx, "run-1", "warehouse", errors.New("load failed"), time.Second)
	})
}
