package core

import (
	"context"
	"fmt"
	"time"
)

// Domain event types
const (
	EventEnrollmentCreated   = "enrollment.created"
	EventLessonCompleted     = "lesson.completed"
	EventLessonUncompleted   = "lesson.uncompleted"
	EventProgressUpdated     = "enrollment.progress_updated"
	EventAssignmentSubmitted = "assignment.submitted"
	EventAssignmentGraded    = "assignment.graded"
	EventSubmissionStatus    = "assignment.status_changed"
	EventQuizSubmitted       = "quiz.submitted"
	EventMessageSent         = "message.sent"
)

// Event is a fact about the domain, published after the change it describes has been committed.
type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"` // partition key: the aggregate id
	ActorID    string      `json:"actor_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewEvent(typ, key, actorID string, payload interface{}) Event {
	return Event{
		Type:       typ,
		Key:        key,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// EventPublisher is any service that can publish domain events to downstream consumers
// (analytics, notifications, review UIs).
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// PublishEvents publishes events whose change is already committed: failures are logged, not returned.
func PublishEvents(ctx context.Context, pub EventPublisher, logger Logger, events ...Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil {
		logger.Warn(fmt.Sprintf("publishing %d event(s): %v", len(events), err), err)
	}
}
