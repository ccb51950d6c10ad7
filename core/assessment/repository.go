package assessment

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
)

type (
	// Filters apply AND on their set fields; an empty slice does not restrict.
	TestFilter struct {
		IDs           []int64
		OwnerID       int64
		ClassIDs      []int64
		PublishedOnly bool
		// DueBefore selects unpublished tests whose publish time is at or before it.
		DueBefore null.Time
	}

	SubmissionFilter struct {
		TestIDs   []int64
		StudentID int64
	}

	ClassFilter struct {
		IDs       []int64
		TeacherID int64
	}

	CourseFilter struct {
		IDs      []int64
		ClassIDs []int64
	}

	BlockFilter struct {
		CourseIDs []int64
		Kind      string
		// TestIDs keeps test-kind blocks linking one of these tests.
		TestIDs []int64
	}

	EventFilter struct {
		TestID    int64
		ClassIDs  []int64
		TeacherID int64
		// From/To select events overlapping the date range.
		From core.Date
		To   core.Date
	}

	TestRepository interface {
		CreateTest(ctx context.Context, t Test) (Test, error)
		GetTestByID(ctx context.Context, id int64) (Test, error)
		QueryTests(ctx context.Context, filter TestFilter) ([]Test, error)
		// UpdateTest saves every field but IsPublished.
		UpdateTest(ctx context.Context, t Test) (Test, error)
		// SetTestPublished is the only write of IsPublished.
		SetTestPublished(ctx context.Context, id int64, published bool, publishAt null.Time, at time.Time) (Test, error)
		// DeleteTest removes the test with its questions, submissions, deadline events
		// and linking content blocks, all or nothing.
		DeleteTest(ctx context.Context, id int64) error
	}

	QuestionRepository interface {
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestionByID(ctx context.Context, id int64) (Question, error)
		// QueryQuestions returns the test's questions by order index.
		QueryQuestions(ctx context.Context, testID int64) ([]Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, id int64) error
		// ReorderQuestions sets order index i on ids[i], all or nothing.
		ReorderQuestions(ctx context.Context, testID int64, ids []int64) error
	}

	SubmissionRepository interface {
		// CreateSubmission fails with ErrSubmissionDup when the student already submitted the test.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id int64) (Submission, error)
		GetSubmission(ctx context.Context, testID, studentID int64) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
	}

	// CourseRepository reads the course authoring data this subsystem links tests into.
	CourseRepository interface {
		GetClass(ctx context.Context, id int64) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
		GetCourse(ctx context.Context, id int64) (Course, error)
		QueryCourses(ctx context.Context, filter CourseFilter) ([]Course, error)
		QueryContentBlocks(ctx context.Context, filter BlockFilter) ([]ContentBlock, error)
		CreateContentBlock(ctx context.Context, b ContentBlock) (ContentBlock, error)
	}

	EventRepository interface {
		CreateEvent(ctx context.Context, e DeadlineEvent) (DeadlineEvent, error)
		QueryEvents(ctx context.Context, filter EventFilter) ([]DeadlineEvent, error)
		UpdateEvent(ctx context.Context, e DeadlineEvent) (DeadlineEvent, error)
		DeleteEvents(ctx context.Context, ids ...int64) error
	}

	// MembershipOracle resolves student memberships across every representation.
	MembershipOracle interface {
		StudentClassIDs(ctx context.Context, studentID int64) ([]int64, error)
		StudentCourseIDs(ctx context.Context, studentID int64) ([]int64, error)
		ClassStudentIDs(ctx context.Context, classID int64) ([]int64, error)
		CourseStudentIDs(ctx context.Context, courseID int64) ([]int64, error)
	}

	// Notifier is a fire-and-forget sink for grading events.
	Notifier interface {
		TestGraded(ctx context.Context, sub Submission, t Test)
		ResultPublished(ctx context.Context, sub Submission, t Test)
	}
)
