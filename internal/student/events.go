package student

import (
	"context"
	"time"
)

const (
	EventCreated = "student.created"
	EventUpdated = "student.updated"
	EventDeleted = "student.deleted"
)

// Event is published after a successful write. Publishing is best-effort:
// a broker failure is logged and never fails the request.
type Event struct {
	Type       string    `json:"type"`
	Student    *Student  `json:"student,omitempty"`
	StudentID  int       `json:"studentId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher abstracts the event broker (NATS or Kafka).
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}
