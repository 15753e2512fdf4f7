package events

// EventType defines the type of event
type EventType string

const (
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunFailed    EventType = "run.failed"
)
