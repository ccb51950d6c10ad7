package assessment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/user"
)

// CreateTest persists a draft test, publishes it when asked, then links it into a course.
func (svc *Service) CreateTest(ctx context.Context, usr user.User, nt NewTest) (Test, error) {
	if err := nt.Validate(); err != nil {
		return Test{}, err
	}
	if !usr.IsStaff() {
		return Test{}, ErrForbidden
	}

	cls, err := svc.courses.GetClass(ctx, nt.ClassID)
	if err != nil {
		return Test{}, errors.Wrap(err, "getting class")
	}
	ownerID := usr.ID
	if usr.IsAdmin() {
		ownerID = cls.TeacherID
		if nt.OwnerID != 0 {
			ownerID = nt.OwnerID
		}
	} else if cls.TeacherID != usr.ID {
		return Test{}, ErrClassNotOwned
	}

	due, err := core.ParseDate(nt.DueDate)
	if err != nil {
		return Test{}, fieldError(err, "due_date")
	}
	publishAt, err := parsePublishAt(nt.PublishAt)
	if err != nil {
		return Test{}, err
	}
	if nt.CourseID != 0 {
		if _, err := svc.checkCourse(ctx, null.Int64From(cls.ID), nt.CourseID); err != nil {
			return Test{}, err
		}
	}

	now := svc.now()
	t := Test{
		Title:       nt.Title,
		Description: nt.Description,
		OwnerID:     ownerID,
		ClassID:     null.Int64From(cls.ID),
		TotalScore:  DefaultTotalScore,
		PublishAt:   publishAt,
		DueDate:     due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nt.TimeLimit > 0 {
		t.TimeLimit = null.IntFrom(nt.TimeLimit)
	}
	if nt.TotalScore > 0 {
		t.TotalScore = nt.TotalScore
	}

	if t, err = svc.tests.CreateTest(ctx, t); err != nil {
		return Test{}, errors.Wrap(err, "creating test")
	}
	if nt.Publish {
		if t, err = svc.Publish(ctx, usr, t.ID, true); err != nil {
			return Test{}, err
		}
	} else if err := svc.syncCalendar(ctx, t); err != nil {
		return Test{}, err
	}

	if err := svc.linkCourse(ctx, t, nt.CourseID); err != nil {
		return Test{}, err
	}
	return t, nil
}

// UpdateTest applies the supplied fields, then resyncs the calendar and course link.
func (svc *Service) UpdateTest(ctx context.Context, usr user.User, id int64, ut UpdateTest) (Test, error) {
	if err := ut.Validate(); err != nil {
		return Test{}, err
	}
	t, err := svc.getManagedTest(ctx, usr, id)
	if err != nil {
		return Test{}, err
	}

	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.ClassID != nil {
		if *ut.ClassID == 0 {
			t.ClassID = null.Int64{}
		} else {
			cls, err := svc.courses.GetClass(ctx, *ut.ClassID)
			if err != nil {
				return Test{}, errors.Wrap(err, "getting class")
			}
			if !usr.IsAdmin() && cls.TeacherID != t.OwnerID {
				return Test{}, ErrClassNotOwned
			}
			t.ClassID = null.Int64From(cls.ID)
		}
	}
	if ut.TimeLimit != nil {
		if *ut.TimeLimit == 0 {
			t.TimeLimit = null.Int{}
		} else {
			t.TimeLimit = null.IntFrom(*ut.TimeLimit)
		}
	}
	if ut.TotalScore != nil {
		t.TotalScore = *ut.TotalScore
	}
	if ut.DueDate != nil {
		if *ut.DueDate == "" {
			t.DueDate = core.Date{}
		} else if t.DueDate, err = core.ParseDate(*ut.DueDate); err != nil {
			return Test{}, fieldError(err, "due_date")
		}
	}
	if ut.PublishAt != nil {
		if t.PublishAt, err = parsePublishAt(*ut.PublishAt); err != nil {
			return Test{}, err
		}
	}

	var courseID int64
	if ut.CourseID != nil && *ut.CourseID != 0 {
		courseID = *ut.CourseID
		if _, err := svc.checkCourse(ctx, t.ClassID, courseID); err != nil {
			return Test{}, err
		}
	}

	t.UpdatedAt = svc.now()
	if t, err = svc.tests.UpdateTest(ctx, t); err != nil {
		return Test{}, errors.Wrap(err, "updating test")
	}

	if ut.IsPublished != nil {
		if t, err = svc.Publish(ctx, usr, t.ID, *ut.IsPublished); err != nil {
			return Test{}, err
		}
	} else if err := svc.syncCalendar(ctx, t); err != nil {
		return Test{}, err
	}

	if err := svc.linkCourse(ctx, t, courseID); err != nil {
		return Test{}, err
	}
	return t, nil
}

// DeleteTest removes the test and everything hanging off it.
func (svc *Service) DeleteTest(ctx context.Context, usr user.User, id int64) error {
	if _, err := svc.getManagedTest(ctx, usr, id); err != nil {
		return err
	}
	if err := svc.tests.DeleteTest(ctx, id); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return nil
}

// GetTest returns the staff view of a test, answer keys included.
func (svc *Service) GetTest(ctx context.Context, usr user.User, id int64) (TestDetail, error) {
	t, err := svc.getManagedTest(ctx, usr, id)
	if err != nil {
		return TestDetail{}, err
	}
	questions, err := svc.questions.QueryQuestions(ctx, t.ID)
	if err != nil {
		return TestDetail{}, errors.Wrap(err, "querying questions")
	}
	return TestDetail{Test: t, State: t.State(), Questions: questions}, nil
}

// QueryTests lists a teacher's own tests, or every test for admins, with submission stats.
// Students list their tests with ListAvailable.
func (svc *Service) QueryTests(ctx context.Context, usr user.User) ([]TestSummary, error) {
	if !usr.IsStaff() {
		return nil, ErrForbidden
	}
	var filter TestFilter
	if !usr.IsAdmin() {
		filter.OwnerID = usr.ID
	}
	tests, err := svc.tests.QueryTests(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	if len(tests) == 0 {
		return []TestSummary{}, nil
	}

	ids := make([]int64, len(tests))
	for i, t := range tests {
		ids[i] = t.ID
	}
	subs, err := svc.submissions.QuerySubmissions(ctx, SubmissionFilter{TestIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	stats := make(map[int64]TestStats, len(tests))
	for _, sub := range subs {
		st := stats[sub.TestID]
		st.Total++
		if sub.IsGraded {
			st.Graded++
		}
		if sub.IsPublished {
			st.Published++
		}
		stats[sub.TestID] = st
	}

	summaries := make([]TestSummary, len(tests))
	for i, t := range tests {
		summaries[i] = TestSummary{Test: t, State: t.State(), Stats: stats[t.ID]}
	}
	return summaries, nil
}

// parsePublishAt parses an RFC3339 publish time; "" means none.
func parsePublishAt(s string) (null.Time, error) {
	if s == "" {
		return null.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return null.Time{}, fieldError(errInvalidPublishAt, "publish_at")
	}
	return null.TimeFrom(at.UTC()), nil
}
