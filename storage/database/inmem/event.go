package inmemdb

import (
	"context"
	"sort"

	"github.com/bangkihwa/studylink/core/assessment"
)

type eventRepository struct {
	db *DB
}

var _ assessment.EventRepository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) assessment.EventRepository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) CreateEvent(_ context.Context, e assessment.DeadlineEvent) (assessment.DeadlineEvent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = repo.db.nextPK()
	repo.db.events[e.ID] = &e
	return e, nil
}

func (repo *eventRepository) QueryEvents(_ context.Context, filter assessment.EventFilter) ([]assessment.DeadlineEvent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]assessment.DeadlineEvent, 0)
	for _, e := range repo.db.events {
		if filter.TestID != 0 && e.TestID != filter.TestID {
			continue
		}
		if len(filter.ClassIDs) > 0 && !containsID(filter.ClassIDs, e.ClassID) {
			continue
		}
		if filter.TeacherID != 0 && e.TeacherID != filter.TeacherID {
			continue
		}
		if !filter.From.IsZero() && e.EndDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && filter.To.Before(e.StartDate) {
			continue
		}
		events = append(events, *e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (repo *eventRepository) UpdateEvent(_ context.Context, e assessment.DeadlineEvent) (assessment.DeadlineEvent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.events[e.ID]; !ok {
		return assessment.DeadlineEvent{}, assessment.ErrEventNotFound
	}
	repo.db.events[e.ID] = &e
	return e, nil
}

func (repo *eventRepository) DeleteEvents(_ context.Context, ids ...int64) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.events, id)
	}
	return nil
}
