package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

// publish sends an event after the change is stored. A failure is logged and
// never undoes the change.
func publish(ctx context.Context, logger *slog.Logger, pub events.Publisher, eventType string, actor *models.User, subject string, data map[string]any) {
	if pub == nil {
		return
	}
	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	if err := pub.Publish(ctx, events.NewEvent(eventType, actorID, subject, data)); err != nil {
		logger.Warn("Failed to publish event", "event_type", eventType, "subject", subject, "error", err)
	}
}

func requireActor(actor *models.User) error {
	if actor == nil {
		return ErrUnauthorized
	}
	return nil
}

// parseDates converts validated request dates. Empty strings become nil.
func parseDates(start, end string) (*time.Time, *time.Time, error) {
	s, err := validator.ParseDate(start)
	if err != nil {
		return nil, nil, validator.Field("agreementStartDate", "Agreement start date is not a valid date", start)
	}
	e, err := validator.ParseDate(end)
	if err != nil {
		return nil, nil, validator.Field("agreementEndDate", "Agreement end date is not a valid date", end)
	}
	return s, e, nil
}
