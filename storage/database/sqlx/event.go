package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
)

type eventRow struct {
	ID          int64     `db:"id"`
	TestID      int64     `db:"test_id"`
	ClassID     int64     `db:"class_id"`
	TeacherID   int64     `db:"teacher_id"`
	CreatedBy   int64     `db:"created_by"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	EventType   string    `db:"event_type"`
	Visibility  string    `db:"visibility"`
	StartDate   core.Date `db:"start_date"`
	EndDate     core.Date `db:"end_date"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

const eventColumns = `id, test_id, class_id, teacher_id, created_by, title, description,
	event_type, visibility, start_date, end_date, created_at, updated_at`

type eventRepository struct {
	db core.DB
}

var _ assessment.EventRepository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db core.DB) assessment.EventRepository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) CreateEvent(ctx context.Context, e assessment.DeadlineEvent) (assessment.DeadlineEvent, error) {
	id, err := insert(
		ctx,
		repo.db,
		`INSERT INTO deadline_events (test_id, class_id, teacher_id, created_by, title, description,
			event_type, visibility, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.TestID, e.ClassID, e.TeacherID, e.CreatedBy, e.Title, e.Description,
		e.EventType, e.Visibility, e.StartDate, e.EndDate, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if err != nil {
		return assessment.DeadlineEvent{}, errors.Wrap(err, "inserting deadline event")
	}
	e.ID = id
	return e, nil
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter assessment.EventFilter) ([]assessment.DeadlineEvent, error) {
	var w where
	if filter.TestID != 0 {
		w.add("test_id = ?", filter.TestID)
	}
	if len(filter.ClassIDs) > 0 {
		w.add("class_id IN (?)", filter.ClassIDs)
	}
	if filter.TeacherID != 0 {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if !filter.From.IsZero() {
		w.add("end_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("start_date <= ?", filter.To)
	}

	var rows []eventRow
	if err := selectIn(ctx, repo.db, &rows, "SELECT "+eventColumns+" FROM deadline_events"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting deadline events")
	}
	events := make([]assessment.DeadlineEvent, len(rows))
	for i, row := range rows {
		events[i] = unboilEvent(row)
	}
	return events, nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, e assessment.DeadlineEvent) (assessment.DeadlineEvent, error) {
	res, err := repo.db.ExecContext(
		ctx,
		repo.db.Rebind(`UPDATE deadline_events SET class_id = ?, teacher_id = ?, title = ?, description = ?,
			event_type = ?, visibility = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?`),
		e.ClassID, e.TeacherID, e.Title, e.Description,
		e.EventType, e.Visibility, e.StartDate, e.EndDate, e.UpdatedAt.UTC(), e.ID,
	)
	if err := checkAffected(res, err, assessment.ErrEventNotFound, "updating deadline event"); err != nil {
		return assessment.DeadlineEvent{}, err
	}
	return e, nil
}

func (repo *eventRepository) DeleteEvents(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := execIn(ctx, repo.db, "DELETE FROM deadline_events WHERE id IN (?)", ids); err != nil {
		return errors.Wrap(err, "deleting deadline events")
	}
	return nil
}

func unboilEvent(row eventRow) assessment.DeadlineEvent {
	e := assessment.DeadlineEvent(row)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e
}
