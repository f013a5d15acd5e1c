// Package events publishes domain events about mentees, users and e-mail.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	Source  = "ibuddy-service"
	Version = "1.0"
)

// Topics.
const (
	MenteeCreated       = "mentee.created"
	MenteeStatusChanged = "mentee.status_changed"
	MenteeDeleted       = "mentee.deleted"
	UserCreated         = "user.created"
	UserDeleted         = "user.deleted"
	EmailSent           = "email.sent"
)

func Topics() []string {
	return []string{MenteeCreated, MenteeStatusChanged, MenteeDeleted, UserCreated, UserDeleted, EmailSent}
}

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actorId,omitempty"`
	Subject   string         `json:"subject"`
	Data      map[string]any `json:"data,omitempty"`
}

func NewEvent(eventType, actorID, subject string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    Source,
		Version:   Version,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Subject:   subject,
		Data:      data,
	}
}

// Publisher delivers events. Publish failures never undo the change that
// produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
