package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(MenteeCreated, "u1", "m1", map[string]any{"buddyId": "b1"})
	if e.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if e.Source != "ibuddy-service" || e.Version != "1.0" {
		t.Errorf("Source/Version = %q/%q", e.Source, e.Version)
	}
	if e.Timestamp.IsZero() {
		t.Error("Event timestamp should not be zero")
	}
}

func TestGoChannelPublisherDelivers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, ch := NewGoChannelPublisher(testLogger())
	defer pub.Close()

	msgs, err := ch.Subscribe(ctx, MenteeStatusChanged)
	if err != nil {
		t.Fatal(err)
	}

	sent := NewEvent(MenteeStatusChanged, "u1", "m1", map[string]any{"from": "assigned", "to": "met"})
	if err := pub.Publish(ctx, sent); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		got, err := Decode(msg)
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != sent.ID || got.Data["to"] != "met" {
			t.Errorf("received %+v", got)
		}
		if msg.Metadata.Get(metadataType) != MenteeStatusChanged {
			t.Errorf("metadata type = %q", msg.Metadata.Get(metadataType))
		}
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	m := NewMockEventPublisher(testLogger())
	ctx := context.Background()
	_ = m.Publish(ctx, NewEvent(UserCreated, "a", "u1", nil))
	_ = m.Publish(ctx, NewEvent(UserDeleted, "a", "u1", nil))

	if len(m.GetPublishedEvents()) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(m.GetPublishedEvents()))
	}
	if got := m.EventsOfType(UserDeleted); len(got) != 1 {
		t.Errorf("EventsOfType() = %v", got)
	}
	m.ClearEvents()
	if len(m.GetPublishedEvents()) != 0 {
		t.Error("ClearEvents() left events behind")
	}
}
