package materializer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository/memory"
	"github.com/pawdose/medtrack-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func instant(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func newMedication(sched model.Schedule) *model.Medication {
	return &model.Medication{
		ID:       uuid.New(),
		PetID:    uuid.New(),
		UserID:   uuid.New(),
		Name:     "Carprofen",
		Dosage:   "25mg",
		Active:   true,
		Timezone: "UTC",
		Schedule: sched,
	}
}

func TestMaterialize_EightHourInterval(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	med := newMedication(model.Schedule{
		IntervalQuantity: 8,
		IntervalUnit:     model.UnitHour,
		StartDate:        instant(2024, 1, 1, 0, 0),
	})

	created, err := svc.Materialize(context.Background(), med, instant(2024, 1, 1, 0, 0), instant(2024, 1, 2, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	all := events.All()
	require.Len(t, all, 4)
	assert.True(t, all[0].ScheduledTime.Equal(instant(2024, 1, 1, 0, 0)))
	assert.True(t, all[3].ScheduledTime.Equal(instant(2024, 1, 2, 0, 0)))
	for _, event := range all {
		assert.Equal(t, model.DoseStatusDue, event.Status)
		assert.Equal(t, med.ID, event.MedicationID)
	}
}

func TestMaterialize_Idempotent(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	med := newMedication(model.Schedule{
		TimesOfDay: []model.TimeOfDay{{Hour: 8}, {Hour: 20}},
		StartDate:  instant(2024, 1, 1, 0, 0),
	})

	from, to := instant(2024, 1, 1, 0, 0), instant(2024, 1, 7, 23, 59)

	created, err := svc.Materialize(context.Background(), med, from, to)
	require.NoError(t, err)
	assert.Equal(t, 14, created)

	created, err = svc.Materialize(context.Background(), med, from, to)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, events.All(), 14)
}

func TestMaterialize_OverlappingWindowsOnlyFillGaps(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	med := newMedication(model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	})

	_, err := svc.Materialize(context.Background(), med, instant(2024, 1, 1, 0, 0), instant(2024, 1, 5, 0, 0))
	require.NoError(t, err)

	created, err := svc.Materialize(context.Background(), med, instant(2024, 1, 1, 0, 0), instant(2024, 1, 8, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Len(t, events.All(), 8)
}

func TestMaterializeAll_SuccessiveSweepsExtendOneChain(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	// daily interval medication started months before the sweeps
	med := newMedication(model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	})
	meds.Put(med)

	created, err := svc.MaterializeAll(context.Background(), instant(2024, 3, 4, 10, 0), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	// the next day's sweep runs at a different wall-clock offset; it only
	// extends the chain, it never mints a parallel one
	created, err = svc.MaterializeAll(context.Background(), instant(2024, 3, 5, 10, 3), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	all := events.All()
	require.Len(t, all, 4)
	for i, event := range all {
		assert.True(t, event.ScheduledTime.Equal(instant(2024, 3, 5+i, 0, 0)))
	}
}

func TestMaterialize_InactiveMedicationCreatesNothing(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	med := newMedication(model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	})
	med.Active = false

	created, err := svc.Materialize(context.Background(), med, instant(2024, 1, 1, 0, 0), instant(2024, 1, 31, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, events.All())
}

func TestMaterialize_NeverRevivesTerminalEvents(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	med := newMedication(model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	})

	// a dose at an occurrence instant was already taken
	logRef := uuid.New()
	taken := &model.DoseEvent{
		MedicationID:  med.ID,
		ScheduledTime: instant(2024, 1, 2, 0, 0),
		Status:        model.DoseStatusTaken,
		ResolutionRef: &logRef,
	}
	require.NoError(t, events.Create(context.Background(), taken))

	created, err := svc.Materialize(context.Background(), med, instant(2024, 1, 1, 0, 0), instant(2024, 1, 3, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	got, err := events.Get(context.Background(), taken.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoseStatusTaken, got.Status)
	assert.Equal(t, &logRef, got.ResolutionRef)
	assert.True(t, got.ScheduledTime.Equal(instant(2024, 1, 2, 0, 0)))
}

func TestMaterialize_PRNCreatesNothing(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	med := newMedication(model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
		AsNeeded:         true,
	})

	created, err := svc.Materialize(context.Background(), med, instant(2024, 1, 1, 0, 0), instant(2024, 12, 31, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, events.All())
}

func TestMaterializeAll_IsolatesPerMedicationFailures(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	broken := newMedication(model.Schedule{
		IntervalQuantity: 0, // invalid: rejected at generation time
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	})
	healthy := newMedication(model.Schedule{
		IntervalQuantity: 1,
		IntervalUnit:     model.UnitDay,
		StartDate:        instant(2024, 1, 1, 0, 0),
	})
	meds.Put(broken)
	meds.Put(healthy)

	created, err := svc.MaterializeAll(context.Background(), instant(2024, 1, 1, 0, 0), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	for _, event := range events.All() {
		assert.Equal(t, healthy.ID, event.MedicationID)
	}
}

func TestMaterializeByID_UnknownMedication(t *testing.T) {
	events := memory.NewDoseEventRepository()
	meds := memory.NewMedicationRepository()
	svc := NewService(events, meds, testLogger())

	_, err := svc.MaterializeByID(context.Background(), uuid.New(), instant(2024, 1, 1, 0, 0), instant(2024, 1, 2, 0, 0))
	assert.Error(t, err)
}
