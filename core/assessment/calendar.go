package assessment

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/user"
)

const (
	maxDeadlineRangeDays = 370

	defaultDeadlineDescription = "Check the test due date."
)

// syncCalendar makes the test's deadline events match HasMirror: at most one event,
// updated in place when it exists.
func (svc *Service) syncCalendar(ctx context.Context, t Test) error {
	events, err := svc.events.QueryEvents(ctx, EventFilter{TestID: t.ID})
	if err != nil {
		return errors.Wrap(err, "querying deadline events")
	}

	if !t.HasMirror() {
		return svc.deleteEvents(ctx, events)
	}

	desc := t.Description
	if desc == "" {
		desc = defaultDeadlineDescription
	}
	now := svc.now()
	ev := DeadlineEvent{
		TestID:      t.ID,
		ClassID:     t.ClassID.Int64,
		TeacherID:   t.OwnerID,
		CreatedBy:   t.OwnerID,
		Title:       t.Title,
		Description: desc,
		EventType:   EventTypeTestDeadline,
		Visibility:  EventVisibilityClass,
		StartDate:   t.DueDate,
		EndDate:     t.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if len(events) == 0 {
		if _, err := svc.events.CreateEvent(ctx, ev); err != nil {
			return errors.Wrap(err, "creating deadline event")
		}
		return nil
	}

	first := events[0]
	ev.ID = first.ID
	ev.CreatedBy = first.CreatedBy
	ev.CreatedAt = first.CreatedAt
	if _, err := svc.events.UpdateEvent(ctx, ev); err != nil {
		return errors.Wrap(err, "updating deadline event")
	}
	return svc.deleteEvents(ctx, events[1:])
}

func (svc *Service) deleteEvents(ctx context.Context, events []DeadlineEvent) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	if err := svc.events.DeleteEvents(ctx, ids...); err != nil {
		return errors.Wrap(err, "deleting deadline events")
	}
	return nil
}

// ListDeadlines returns the deadline events the user can see between from and to, inclusive.
func (svc *Service) ListDeadlines(ctx context.Context, usr user.User, from, to core.Date) ([]DeadlineEvent, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, fieldError(errInvalidDateRange, "from")
	}
	if from.DaysUntil(to) > maxDeadlineRangeDays {
		return nil, fieldError(errDateRangeTooLarge, "to")
	}

	var filters []EventFilter
	switch {
	case usr.IsAdmin():
		filters = append(filters, EventFilter{})
	case usr.IsTeacher():
		filters = append(filters, EventFilter{TeacherID: usr.ID})
		classes, err := svc.courses.QueryClasses(ctx, ClassFilter{TeacherID: usr.ID})
		if err != nil {
			return nil, errors.Wrap(err, "querying taught classes")
		}
		if len(classes) > 0 {
			ids := make([]int64, len(classes))
			for i, c := range classes {
				ids[i] = c.ID
			}
			filters = append(filters, EventFilter{ClassIDs: ids})
		}
	case usr.IsStudent():
		classIDs, err := svc.members.StudentClassIDs(ctx, usr.ID)
		if err != nil {
			return nil, errors.Wrap(err, "resolving student classes")
		}
		if len(classIDs) > 0 {
			filters = append(filters, EventFilter{ClassIDs: classIDs})
		}
	default:
		return nil, ErrForbidden
	}

	seen := make(map[int64]bool)
	events := make([]DeadlineEvent, 0)
	for _, filter := range filters {
		filter.From, filter.To = from, to
		found, err := svc.events.QueryEvents(ctx, filter)
		if err != nil {
			return nil, errors.Wrap(err, "querying deadline events")
		}
		for _, ev := range found {
			if !seen[ev.ID] {
				seen[ev.ID] = true
				events = append(events, ev)
			}
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].StartDate != events[j].StartDate {
			return events[i].StartDate.Before(events[j].StartDate)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}
