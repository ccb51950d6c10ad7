package assessment_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
	testutil "github.com/bangkihwa/studylink/tests"
)

const (
	farDue  = "2099-12-31"
	pastDue = "2020-01-01"
)

type world struct {
	*testutil.Env
	admin   user.User
	teacher user.User
	other   user.User
	student user.User
	cls     assessment.Class
}

// newWorld seeds a teacher with one class and an enrolled student.
func newWorld(t *testing.T) *world {
	env := testutil.NewEnv(t)
	w := &world{
		Env:     env,
		admin:   env.Admin(t),
		teacher: env.Teacher(t, "kim"),
		other:   env.Teacher(t, "park"),
		student: env.Student(t, "lee"),
	}
	w.cls = env.Class(w.teacher, "Math A")
	env.DB.EnrollInClass(w.cls.ID, w.student.ID)
	return w
}

func (w *world) events(t *testing.T, testID int64) []assessment.DeadlineEvent {
	t.Helper()
	events, err := w.Events.QueryEvents(context.Background(), assessment.EventFilter{TestID: testID})
	require.NoError(t, err)
	return events
}

func (w *world) linkingBlocks(t *testing.T, testID int64) []assessment.ContentBlock {
	t.Helper()
	blocks, err := w.Courses.QueryContentBlocks(context.Background(), assessment.BlockFilter{TestIDs: []int64{testID}})
	require.NoError(t, err)
	return blocks
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *core.ValidationError
	if assert.True(t, errors.As(err, &verr), "want a validation error, got %v", err) {
		require.NotEmpty(t, verr.Fields)
		assert.Equal(t, field, verr.Fields[0].Field)
	}
}

func TestService_CreateTest(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	otherCls := w.Class(w.other, "Math B")

	tests := []struct {
		name      string
		usr       user.User
		nt        assessment.NewTest
		wantOwner int64
		wantErr   error
		wantField string
	}{
		{
			name:      "teacher in own class",
			usr:       w.teacher,
			nt:        assessment.NewTest{Title: "Quiz", ClassID: w.cls.ID, DueDate: farDue},
			wantOwner: w.teacher.ID,
		},
		{
			name:    "teacher in another teacher's class",
			usr:     w.teacher,
			nt:      assessment.NewTest{Title: "Quiz", ClassID: otherCls.ID, DueDate: farDue},
			wantErr: assessment.ErrClassNotOwned,
		},
		{
			name:      "admin defaults the owner to the class teacher",
			usr:       w.admin,
			nt:        assessment.NewTest{Title: "Quiz", ClassID: otherCls.ID, DueDate: farDue},
			wantOwner: w.other.ID,
		},
		{
			name:    "student",
			usr:     w.student,
			nt:      assessment.NewTest{Title: "Quiz", ClassID: w.cls.ID, DueDate: farDue},
			wantErr: assessment.ErrForbidden,
		},
		{
			name:    "unknown class",
			usr:     w.teacher,
			nt:      assessment.NewTest{Title: "Quiz", ClassID: 9999, DueDate: farDue},
			wantErr: assessment.ErrClassNotFound,
		},
		{
			name:      "invalid publish time",
			usr:       w.teacher,
			nt:        assessment.NewTest{Title: "Quiz", ClassID: w.cls.ID, DueDate: farDue, PublishAt: "tomorrow"},
			wantField: "publish_at",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Svc.CreateTest(ctx, tt.usr, tt.nt)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantField != "":
				assertValidation(t, err, tt.wantField)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantOwner, got.OwnerID)
				assert.Equal(t, assessment.DefaultTotalScore, got.TotalScore)
				assert.Equal(t, assessment.TestDraft, got.State())
			}
		})
	}

	t.Run("required fields", func(t *testing.T) {
		_, err := w.Svc.CreateTest(ctx, w.teacher, assessment.NewTest{ClassID: w.cls.ID, DueDate: "2026-02-30"})
		assert.Error(t, err)
	})
}

func TestService_calendarMirror(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	test := w.CreateTest(t, w.teacher, w.cls, "Midterm", "2026-11-20", false)
	assert.Empty(t, w.events(t, test.ID), "drafts have no deadline event")

	published, err := w.Svc.Publish(ctx, w.teacher, test.ID, true)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	events := w.events(t, test.ID)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "Midterm", ev.Title)
	assert.Equal(t, "2026-11-20", ev.StartDate.String())
	assert.Equal(t, ev.StartDate, ev.EndDate)
	assert.Equal(t, w.cls.ID, ev.ClassID)
	assert.Equal(t, assessment.EventTypeTestDeadline, ev.EventType)

	t.Run("publish is idempotent", func(t *testing.T) {
		_, err := w.Svc.Publish(ctx, w.teacher, test.ID, true)
		require.NoError(t, err)
		events := w.events(t, test.ID)
		require.Len(t, events, 1)
		assert.Equal(t, ev.ID, events[0].ID)
	})

	t.Run("due date change updates the event in place", func(t *testing.T) {
		due := "2026-11-27"
		_, err := w.Svc.UpdateTest(ctx, w.teacher, test.ID, assessment.UpdateTest{DueDate: &due})
		require.NoError(t, err)
		events := w.events(t, test.ID)
		require.Len(t, events, 1)
		assert.Equal(t, ev.ID, events[0].ID)
		assert.Equal(t, due, events[0].StartDate.String())
	})

	t.Run("clearing the class removes the event", func(t *testing.T) {
		none := int64(0)
		got, err := w.Svc.UpdateTest(ctx, w.teacher, test.ID, assessment.UpdateTest{ClassID: &none})
		require.NoError(t, err)
		assert.True(t, got.IsPublished)
		assert.Empty(t, w.events(t, test.ID))

		cls := w.cls.ID
		_, err = w.Svc.UpdateTest(ctx, w.teacher, test.ID, assessment.UpdateTest{ClassID: &cls})
		require.NoError(t, err)
		assert.Len(t, w.events(t, test.ID), 1)
	})

	t.Run("unpublishing removes the event", func(t *testing.T) {
		off := false
		got, err := w.Svc.UpdateTest(ctx, w.teacher, test.ID, assessment.UpdateTest{IsPublished: &off})
		require.NoError(t, err)
		assert.False(t, got.IsPublished)
		assert.Empty(t, w.events(t, test.ID))
	})

	t.Run("publishing on create mirrors immediately", func(t *testing.T) {
		created := w.CreateTest(t, w.teacher, w.cls, "Final", farDue, true)
		assert.True(t, created.IsPublished)
		assert.Len(t, w.events(t, created.ID), 1)
	})
}

func TestService_scheduledPublication(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	past, err := w.Svc.CreateTest(ctx, w.teacher, assessment.NewTest{
		Title: "Due", ClassID: w.cls.ID, DueDate: farDue, PublishAt: "2026-01-01T09:00:00+09:00",
	})
	require.NoError(t, err)
	_, err = w.Svc.CreateTest(ctx, w.teacher, assessment.NewTest{
		Title: "Later", ClassID: w.cls.ID, DueDate: farDue, PublishAt: "2099-01-01T09:00:00+09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, assessment.TestScheduled, past.State())

	ids, err := w.Svc.DuePublications(ctx, assessment.NowFunc())
	require.NoError(t, err)
	assert.Equal(t, []int64{past.ID}, ids)

	published, err := w.Svc.Publish(ctx, user.System, past.ID, true)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	assert.Len(t, w.events(t, past.ID), 1)

	ids, err = w.Svc.DuePublications(ctx, assessment.NowFunc())
	require.NoError(t, err)
	assert.Empty(t, ids)

	unpublished, err := w.Svc.Publish(ctx, w.teacher, past.ID, false)
	require.NoError(t, err)
	assert.False(t, unpublished.PublishAt.Valid, "a past publish time is dropped on unpublish")
	ids, err = w.Svc.DuePublications(ctx, assessment.NowFunc())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestService_linkCourse(t *testing.T) {
	ctx := context.Background()

	t.Run("single owned course", func(t *testing.T) {
		w := newWorld(t)
		course := w.Course(w.teacher, w.cls, "Algebra", true)
		test := w.CreateTest(t, w.teacher, w.cls, "Quiz", farDue, true)

		blocks := w.linkingBlocks(t, test.ID)
		require.Len(t, blocks, 1)
		assert.Equal(t, course.ID, blocks[0].CourseID)
		assert.Equal(t, "Test · Quiz", blocks[0].Title)
		assert.True(t, blocks[0].IsRequired)

		title := "Quiz (v2)"
		_, err := w.Svc.UpdateTest(ctx, w.teacher, test.ID, assessment.UpdateTest{Title: &title})
		require.NoError(t, err)
		assert.Len(t, w.linkingBlocks(t, test.ID), 1, "updates never duplicate the block")
	})

	t.Run("blocks are appended", func(t *testing.T) {
		w := newWorld(t)
		w.Course(w.teacher, w.cls, "Algebra", true)
		first := w.CreateTest(t, w.teacher, w.cls, "Quiz 1", farDue, false)
		second := w.CreateTest(t, w.teacher, w.cls, "Quiz 2", farDue, false)
		assert.Equal(t, 0, w.linkingBlocks(t, first.ID)[0].OrderIndex)
		assert.Equal(t, 1, w.linkingBlocks(t, second.ID)[0].OrderIndex)
	})

	t.Run("ambiguous courses are left alone", func(t *testing.T) {
		w := newWorld(t)
		w.Course(w.teacher, w.cls, "Algebra", true)
		w.Course(w.teacher, w.cls, "Geometry", true)
		test := w.CreateTest(t, w.teacher, w.cls, "Quiz", farDue, true)
		assert.Empty(t, w.linkingBlocks(t, test.ID))
		assert.Contains(t, w.Logger.Messages(),
			fmt.Sprintf("INFO: test %d not linked: class %d has 2 courses, 2 owned by the test owner", test.ID, w.cls.ID))
	})

	t.Run("explicit course", func(t *testing.T) {
		w := newWorld(t)
		w.Course(w.teacher, w.cls, "Algebra", true)
		geometry := w.Course(w.teacher, w.cls, "Geometry", true)
		test, err := w.Svc.CreateTest(ctx, w.teacher, assessment.NewTest{
			Title: "Quiz", ClassID: w.cls.ID, CourseID: geometry.ID, DueDate: farDue,
		})
		require.NoError(t, err)
		blocks := w.linkingBlocks(t, test.ID)
		require.Len(t, blocks, 1)
		assert.Equal(t, geometry.ID, blocks[0].CourseID)
	})

	t.Run("course of another class", func(t *testing.T) {
		w := newWorld(t)
		otherCls := w.Class(w.teacher, "Math B")
		course := w.Course(w.teacher, otherCls, "Algebra", true)
		_, err := w.Svc.CreateTest(ctx, w.teacher, assessment.NewTest{
			Title: "Quiz", ClassID: w.cls.ID, CourseID: course.ID, DueDate: farDue,
		})
		assertValidation(t, err, "course_id")
	})
}

func TestService_ReorderQuestions(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	test := w.CreateTest(t, w.teacher, w.cls, "Quiz", farDue, false)
	q1 := w.AddQuestion(t, w.teacher, test.ID, assessment.TypeBinary, `{"correct_answer":"O"}`, 10)
	q2 := w.AddQuestion(t, w.teacher, test.ID, assessment.TypeShortAnswer, `{"correct_answer":"Seoul"}`, 10)

	tests := []struct {
		name      string
		usr       user.User
		ids       []int64
		wantOrder []int64
		wantErr   error
		wantField string
	}{
		{name: "duplicate id", usr: w.teacher, ids: []int64{q1.ID, q1.ID}, wantField: "question_ids"},
		{name: "extra id", usr: w.teacher, ids: []int64{q1.ID, q2.ID, 9999}, wantField: "question_ids"},
		{name: "missing id", usr: w.teacher, ids: []int64{q2.ID}, wantField: "question_ids"},
		{name: "other teacher", usr: w.other, ids: []int64{q2.ID, q1.ID}, wantErr: assessment.ErrForbidden},
		{name: "reordered", usr: w.teacher, ids: []int64{q2.ID, q1.ID}, wantOrder: []int64{q2.ID, q1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Svc.ReorderQuestions(ctx, tt.usr, test.ID, tt.ids)
			switch {
			case tt.wantField != "":
				assertValidation(t, err, tt.wantField)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				ids := make([]int64, len(got))
				for i, q := range got {
					ids[i] = q.ID
					assert.Equal(t, i, q.OrderIndex)
				}
				assert.Equal(t, tt.wantOrder, ids)
			}
		})
	}

	questions, err := w.Svc.QueryQuestions(ctx, w.teacher, test.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, q2.ID, questions[0].ID)
}

func TestService_DeleteTest(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	w.Course(w.teacher, w.cls, "Algebra", true)
	test := w.CreateTest(t, w.teacher, w.cls, "Quiz", farDue, true)
	w.AddQuestion(t, w.teacher, test.ID, assessment.TypeBinary, `{"correct_answer":"O"}`, 10)
	require.Len(t, w.events(t, test.ID), 1)
	require.Len(t, w.linkingBlocks(t, test.ID), 1)

	assert.ErrorIs(t, w.Svc.DeleteTest(ctx, w.other, test.ID), assessment.ErrForbidden)
	require.NoError(t, w.Svc.DeleteTest(ctx, w.teacher, test.ID))

	_, err := w.Svc.GetTest(ctx, w.teacher, test.ID)
	assert.ErrorIs(t, err, assessment.ErrTestNotFound)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
	assert.Empty(t, w.events(t, test.ID))
	assert.Empty(t, w.linkingBlocks(t, test.ID))
}

func TestService_QueryTests(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	mine := w.CreateTest(t, w.teacher, w.cls, "Mine", farDue, true)
	w.CreateTest(t, w.other, w.Class(w.other, "Math B"), "Theirs", farDue, true)
	_, err := w.Svc.SubmitTest(ctx, w.student, mine.ID, nil)
	require.NoError(t, err)

	summaries, err := w.Svc.QueryTests(ctx, w.teacher)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, mine.ID, summaries[0].ID)
	assert.Equal(t, assessment.TestPublished, summaries[0].State)
	assert.Equal(t, assessment.TestStats{Total: 1, Graded: 1}, summaries[0].Stats)

	all, err := w.Svc.QueryTests(ctx, w.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = w.Svc.QueryTests(ctx, w.student)
	assert.ErrorIs(t, err, assessment.ErrForbidden)
}
