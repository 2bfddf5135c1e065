package reminder

import (
	"context"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository/memory"
	"github.com/pawdose/medtrack-api/pkg/logger"
	"github.com/pawdose/medtrack-api/pkg/metrics"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

// shared across tests: the prometheus default registry rejects duplicates
var testMetrics = metrics.New("reminder_test")

// recordingNotifier captures dispatched notifications and can be told to
// fail, to exercise the claim/rollback path.
type recordingNotifier struct {
	reminders []uuid.UUID
	overdues  []uuid.UUID
	fail      bool
}

func (n *recordingNotifier) SendReminder(_ context.Context, event *model.DueEventContext) error {
	if n.fail {
		return stderrors.New("transport down")
	}
	n.reminders = append(n.reminders, event.DoseEvent.ID)
	return nil
}

func (n *recordingNotifier) SendOverdue(_ context.Context, event *model.DueEventContext) error {
	if n.fail {
		return stderrors.New("transport down")
	}
	n.overdues = append(n.overdues, event.DoseEvent.ID)
	return nil
}

func at(hh, mm int) time.Time {
	return time.Date(2024, 3, 4, hh, mm, 0, 0, time.UTC)
}

func dueEvent(t *testing.T, events *memory.DoseEventRepository, scheduled time.Time) *model.DoseEvent {
	t.Helper()
	medID := uuid.New()
	events.SetContext(medID, memory.NotifyContext{
		MedicationName: "Metacam",
		Dosage:         "1.5mg/ml",
		PetName:        "Biscuit",
		UserID:         uuid.New(),
		NotifyChannel:  "push",
		Timezone:       "UTC",
	})
	event := &model.DoseEvent{
		MedicationID:  medID,
		ScheduledTime: scheduled,
		Status:        model.DoseStatusDue,
	}
	require.NoError(t, events.Create(context.Background(), event))
	return event
}

func TestSweepUpcoming_FiresInsideLeadWindow(t *testing.T) {
	events := memory.NewDoseEventRepository()
	notif := &recordingNotifier{}
	svc := NewService(events, notif, Config{ReminderLeadTime: 15 * time.Minute}, testLogger(), testMetrics)

	event := dueEvent(t, events, at(8, 0))

	// 07:40 is outside the 15m lead window
	sent, err := svc.SweepUpcoming(context.Background(), at(7, 40))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, notif.reminders)

	// 07:50 is inside
	sent, err = svc.SweepUpcoming(context.Background(), at(7, 50))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []uuid.UUID{event.ID}, notif.reminders)

	got, err := events.Get(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RemindedAt)
	assert.True(t, got.RemindedAt.Equal(at(7, 50)))
}

func TestSweepUpcoming_RemindsAtMostOnce(t *testing.T) {
	events := memory.NewDoseEventRepository()
	notif := &recordingNotifier{}
	svc := NewService(events, notif, Config{ReminderLeadTime: 15 * time.Minute}, testLogger(), testMetrics)

	dueEvent(t, events, at(8, 0))

	sent, err := svc.SweepUpcoming(context.Background(), at(7, 50))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = svc.SweepUpcoming(context.Background(), at(7, 55))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, notif.reminders, 1)
}

func TestSweepUpcoming_SkipsResolvedEvents(t *testing.T) {
	events := memory.NewDoseEventRepository()
	notif := &recordingNotifier{}
	svc := NewService(events, notif, Config{ReminderLeadTime: 15 * time.Minute}, testLogger(), testMetrics)

	event := dueEvent(t, events, at(8, 0))
	logRef := uuid.New()
	require.NoError(t, events.UpdateStatus(context.Background(), event.ID, model.DoseStatusTaken, &logRef))

	sent, err := svc.SweepUpcoming(context.Background(), at(7, 50))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, notif.reminders)
}

func TestSweepUpcoming_DispatchFailureRetriesNextSweep(t *testing.T) {
	events := memory.NewDoseEventRepository()
	notif := &recordingNotifier{fail: true}
	svc := NewService(events, notif, Config{ReminderLeadTime: 15 * time.Minute}, testLogger(), testMetrics)

	event := dueEvent(t, events, at(8, 0))

	sent, err := svc.SweepUpcoming(context.Background(), at(7, 50))
	require.NoError(t, err)
	assert.Zero(t, sent)

	// the claim was rolled back, so a later sweep retries
	got, err := events.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RemindedAt)

	notif.fail = false
	sent, err = svc.SweepUpcoming(context.Background(), at(7, 55))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []uuid.UUID{event.ID}, notif.reminders)
}

func TestSweepOverdue_FiresPastGrace(t *testing.T) {
	events := memory.NewDoseEventRepository()
	notif := &recordingNotifier{}
	svc := NewService(events, notif, Config{OverdueGrace: 30 * time.Minute}, testLogger(), testMetrics)

	event := dueEvent(t, events, at(8, 0))

	// 08:20 is inside the grace period
	sent, err := svc.SweepOverdue(context.Background(), at(8, 20))
	require.NoError(t, err)
	assert.Zero(t, sent)

	sent, err = svc.SweepOverdue(context.Background(), at(8, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []uuid.UUID{event.ID}, notif.overdues)

	// one overdue notice per event
	sent, err = svc.SweepOverdue(context.Background(), at(9, 0))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, notif.overdues, 1)
}

func TestSweepOverdue_ReminderAndOverdueAreIndependent(t *testing.T) {
	events := memory.NewDoseEventRepository()
	notif := &recordingNotifier{}
	reminders := NewService(events, notif, Config{}, testLogger(), testMetrics)

	event := dueEvent(t, events, at(8, 0))

	sent, err := reminders.SweepUpcoming(context.Background(), at(7, 50))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = reminders.SweepOverdue(context.Background(), at(8, 45))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	got, err := events.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RemindedAt)
	assert.NotNil(t, got.OverdueNotifiedAt)
	assert.Equal(t, model.DoseStatusDue, got.Status, "notices never change status")
}

func TestSweepOverdue_SnoozeReArmsNotices(t *testing.T) {
	events := memory.NewDoseEventRepository()
	notif := &recordingNotifier{}
	svc := NewService(events, notif, Config{}, testLogger(), testMetrics)

	event := dueEvent(t, events, at(8, 0))

	_, err := svc.SweepUpcoming(context.Background(), at(7, 50))
	require.NoError(t, err)
	_, err = svc.SweepOverdue(context.Background(), at(8, 45))
	require.NoError(t, err)

	// snooze pushes the event to 08:15 and clears both flags
	require.NoError(t, events.Reschedule(context.Background(), event.ID, at(8, 15)))

	sent, err := svc.SweepUpcoming(context.Background(), at(8, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "snoozed event is reminded again")

	sent, err = svc.SweepOverdue(context.Background(), at(8, 50))
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "snoozed event goes overdue again")
}

func TestSweepUpcoming_FailureIsolation(t *testing.T) {
	// one event's dispatch failure must not stop the others
	events := memory.NewDoseEventRepository()
	svc := NewService(events, &selectiveNotifier{}, Config{ReminderLeadTime: 15 * time.Minute}, testLogger(), testMetrics)

	bad := dueEvent(t, events, at(8, 0))
	events.SetContext(bad.MedicationID, memory.NotifyContext{NotifyChannel: "broken"})
	good := dueEvent(t, events, at(8, 5))

	sent, err := svc.SweepUpcoming(context.Background(), at(7, 55))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	badRow, err := events.Get(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Nil(t, badRow.RemindedAt)

	goodRow, err := events.Get(context.Background(), good.ID)
	require.NoError(t, err)
	assert.NotNil(t, goodRow.RemindedAt)
}

// selectiveNotifier fails events whose context routes to the "broken"
// channel.
type selectiveNotifier struct{}

func (selectiveNotifier) SendReminder(_ context.Context, event *model.DueEventContext) error {
	if event.NotifyChannel == "broken" {
		return stderrors.New("transport down")
	}
	return nil
}

func (selectiveNotifier) SendOverdue(context.Context, *model.DueEventContext) error {
	return nil
}
