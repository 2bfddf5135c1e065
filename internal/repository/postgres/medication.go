package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository"
)

type medicationRepository struct {
	db *sqlx.DB
}

func NewMedicationRepository(db *sqlx.DB) repository.MedicationRepository {
	return &medicationRepository{db: db}
}

// medicationRow flattens the schedule columns; times_of_day and
// weekday_filter are postgres arrays.
type medicationRow struct {
	ID               uuid.UUID      `db:"id"`
	PetID            uuid.UUID      `db:"pet_id"`
	UserID           uuid.UUID      `db:"user_id"`
	Name             string         `db:"name"`
	Dosage           string         `db:"dosage"`
	Active           bool           `db:"active"`
	Timezone         string         `db:"timezone"`
	IntervalQuantity int            `db:"interval_quantity"`
	IntervalUnit     string         `db:"interval_unit"`
	TimesOfDay       pq.StringArray `db:"times_of_day"`
	WeekdayFilter    pq.Int64Array  `db:"weekday_filter"`
	StartDate        time.Time      `db:"start_date"`
	EndDate          *time.Time     `db:"end_date"`
	AsNeeded         bool           `db:"as_needed"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

const medicationColumns = `
	m.id, m.pet_id, p.user_id, m.name, m.dosage, m.active, m.timezone,
	m.interval_quantity, m.interval_unit, m.times_of_day, m.weekday_filter,
	m.start_date, m.end_date, m.as_needed, m.created_at, m.updated_at
`

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications m
		JOIN pets p ON p.id = m.pet_id
		WHERE m.id = $1
	`
	var row medicationRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return row.toModel()
}

func (r *medicationRepository) ListActive(ctx context.Context) ([]*model.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications m
		JOIN pets p ON p.id = m.pet_id
		WHERE m.active = true
		ORDER BY m.created_at ASC
	`
	var rows []medicationRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list active medications: %w", err)
	}

	medications := make([]*model.Medication, 0, len(rows))
	for _, row := range rows {
		med, err := row.toModel()
		if err != nil {
			return nil, err
		}
		medications = append(medications, med)
	}
	return medications, nil
}

func (row *medicationRow) toModel() (*model.Medication, error) {
	timesOfDay := make([]model.TimeOfDay, 0, len(row.TimesOfDay))
	for _, s := range row.TimesOfDay {
		tod, err := model.ParseTimeOfDay(s)
		if err != nil {
			return nil, fmt.Errorf("medication %s: %w", row.ID, err)
		}
		timesOfDay = append(timesOfDay, tod)
	}

	weekdays := make([]model.Weekday, 0, len(row.WeekdayFilter))
	for _, wd := range row.WeekdayFilter {
		weekdays = append(weekdays, model.Weekday(wd))
	}

	return &model.Medication{
		ID:       row.ID,
		PetID:    row.PetID,
		UserID:   row.UserID,
		Name:     row.Name,
		Dosage:   row.Dosage,
		Active:   row.Active,
		Timezone: row.Timezone,
		Schedule: model.Schedule{
			IntervalQuantity: row.IntervalQuantity,
			IntervalUnit:     model.IntervalUnit(row.IntervalUnit),
			TimesOfDay:       timesOfDay,
			WeekdayFilter:    weekdays,
			StartDate:        row.StartDate,
			EndDate:          row.EndDate,
			AsNeeded:         row.AsNeeded,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
