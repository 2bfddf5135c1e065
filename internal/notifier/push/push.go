// Package push publishes dose notifications to per-user channels on the
// message broker; mobile/web clients subscribe to their own channel.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/notifier"
	"github.com/pawdose/medtrack-api/pkg/messaging"
)

type Notifier struct {
	broker messaging.Broker
}

func New(broker messaging.Broker) *Notifier {
	return &Notifier{broker: broker}
}

var _ notifier.Notifier = (*Notifier)(nil)

type payload struct {
	Type           string    `json:"type"`
	DoseEventID    uuid.UUID `json:"dose_event_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage,omitempty"`
	PetName        string    `json:"pet_name"`
	ScheduledTime  time.Time `json:"scheduled_time"`
}

func channelFor(userID uuid.UUID) string {
	return fmt.Sprintf("notifications:%s", userID)
}

func (n *Notifier) SendReminder(ctx context.Context, event *model.DueEventContext) error {
	return n.broker.Publish(ctx, channelFor(event.UserID), payload{
		Type:           "dose_reminder",
		DoseEventID:    event.DoseEvent.ID,
		MedicationName: event.MedicationName,
		Dosage:         event.Dosage,
		PetName:        event.PetName,
		ScheduledTime:  event.ScheduledTime,
	})
}

func (n *Notifier) SendOverdue(ctx context.Context, event *model.DueEventContext) error {
	return n.broker.Publish(ctx, channelFor(event.UserID), payload{
		Type:           "dose_overdue",
		DoseEventID:    event.DoseEvent.ID,
		MedicationName: event.MedicationName,
		Dosage:         event.Dosage,
		PetName:        event.PetName,
		ScheduledTime:  event.ScheduledTime,
	})
}
