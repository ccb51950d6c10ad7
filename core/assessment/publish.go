package assessment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core/user"
)

// Publish sets the test's publication flag and reconciles its deadline event.
// It is idempotent: when the flag already matches only the calendar is resynced.
// Unpublishing drops a publish time that has already passed so the scheduler leaves the test alone.
func (svc *Service) Publish(ctx context.Context, usr user.User, testID int64, published bool) (Test, error) {
	t, err := svc.getManagedTest(ctx, usr, testID)
	if err != nil {
		return Test{}, err
	}

	if t.IsPublished != published {
		now := svc.now()
		publishAt := t.PublishAt
		if !published && publishAt.Valid && !publishAt.Time.After(now) {
			publishAt = null.Time{}
		}
		if t, err = svc.tests.SetTestPublished(ctx, t.ID, published, publishAt, now); err != nil {
			return Test{}, errors.Wrap(err, "setting test publication")
		}
	}

	if err := svc.syncCalendar(ctx, t); err != nil {
		return Test{}, err
	}
	return t, nil
}

// DuePublications returns the ids of unpublished tests whose publish time is at or before now.
func (svc *Service) DuePublications(ctx context.Context, now time.Time) ([]int64, error) {
	tests, err := svc.tests.QueryTests(ctx, TestFilter{DueBefore: null.TimeFrom(now.UTC())})
	if err != nil {
		return nil, errors.Wrap(err, "querying due tests")
	}
	ids := make([]int64, len(tests))
	for i, t := range tests {
		ids[i] = t.ID
	}
	return ids, nil
}
