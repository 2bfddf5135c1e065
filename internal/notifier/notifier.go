package notifier

import (
	"context"
	"fmt"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/pkg/logger"
)

const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// Notifier delivers dose reminders. Fire-and-forget from the engine's
// perspective: the reminder scanner logs failures and re-arms the event,
// it never propagates them.
type Notifier interface {
	SendReminder(ctx context.Context, event *model.DueEventContext) error
	SendOverdue(ctx context.Context, event *model.DueEventContext) error
}

// Dispatcher routes each notification to the user's preferred channel.
// Unknown or empty channel preferences fall back to push.
type Dispatcher struct {
	channels map[string]Notifier
	logger   *logger.Logger
}

func NewDispatcher(logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		channels: make(map[string]Notifier),
		logger:   logger,
	}
}

func (d *Dispatcher) Register(channel string, n Notifier) {
	d.channels[channel] = n
}

func (d *Dispatcher) pick(event *model.DueEventContext) (Notifier, error) {
	channel := event.NotifyChannel
	if channel == "" {
		channel = ChannelPush
	}
	n, ok := d.channels[channel]
	if !ok {
		n, ok = d.channels[ChannelPush]
	}
	if !ok {
		return nil, fmt.Errorf("no notifier registered for channel %q", channel)
	}
	return n, nil
}

func (d *Dispatcher) SendReminder(ctx context.Context, event *model.DueEventContext) error {
	n, err := d.pick(event)
	if err != nil {
		return err
	}
	return n.SendReminder(ctx, event)
}

func (d *Dispatcher) SendOverdue(ctx context.Context, event *model.DueEventContext) error {
	n, err := d.pick(event)
	if err != nil {
		return err
	}
	return n.SendOverdue(ctx, event)
}
