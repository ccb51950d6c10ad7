package assessment

import (
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
)

const (
	DefaultTotalScore     = 100
	DefaultQuestionPoints = 10.0

	BlockKindTest = "test"

	EventTypeTestDeadline = "test_deadline"
	EventVisibilityClass  = "class"
)

type TestState string

const (
	TestDraft     TestState = "draft"
	TestScheduled TestState = "scheduled"
	TestPublished TestState = "published"
)

type Test struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	OwnerID     int64      `json:"owner_id"`
	ClassID     null.Int64 `json:"class_id"`
	TimeLimit   null.Int   `json:"time_limit"` // minutes
	TotalScore  int        `json:"total_score"`
	IsPublished bool       `json:"is_published"`
	PublishAt   null.Time  `json:"publish_at"`
	DueDate     core.Date  `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// State derives the publication state from the stored flags.
func (t Test) State() TestState {
	switch {
	case t.IsPublished:
		return TestPublished
	case t.PublishAt.Valid:
		return TestScheduled
	default:
		return TestDraft
	}
}

// HasMirror reports whether a deadline event must mirror the test.
func (t Test) HasMirror() bool {
	return t.IsPublished && !t.DueDate.IsZero() && t.ClassID.Valid
}

// Cutoff is the last instant a submission is accepted: the due date at 23:59:59 in loc.
// ok is false when the test has no due date.
func (t Test) Cutoff(loc *time.Location) (cutoff time.Time, ok bool) {
	if t.DueDate.IsZero() {
		return time.Time{}, false
	}
	return t.DueDate.EndOfDay(loc), true
}

type Question struct {
	ID           int64        `json:"id"`
	TestID       int64        `json:"test_id"`
	Type         QuestionType `json:"type"`
	QuestionText string       `json:"question_text"`
	Payload      Payload      `json:"payload"`
	Points       float64      `json:"points"`
	OrderIndex   int          `json:"order_index"`
}

// Answers maps question ids to the student's raw responses.
type Answers map[int64]json.RawMessage

type SubmissionState string

const (
	SubmissionSubmitted SubmissionState = "submitted"
	SubmissionGraded    SubmissionState = "graded"
	SubmissionPublished SubmissionState = "published"
)

type Submission struct {
	ID            int64        `json:"id"`
	TestID        int64        `json:"test_id"`
	StudentID     int64        `json:"student_id"`
	RawAnswers    Answers      `json:"raw_answers"`
	GradedAnswers []Outcome    `json:"graded_answers"`
	Feedback      null.String  `json:"feedback"`
	Score         null.Float64 `json:"score"`
	IsGraded      bool         `json:"is_graded"`
	IsPublished   bool         `json:"is_published"`
	SubmittedAt   time.Time    `json:"submitted_at"` // UTC
	GradedAt      null.Time    `json:"graded_at"`    // UTC
}

func (s Submission) State() SubmissionState {
	switch {
	case s.IsPublished:
		return SubmissionPublished
	case s.IsGraded:
		return SubmissionGraded
	default:
		return SubmissionSubmitted
	}
}

// markGraded moves the submission to graded with the given score.
func (s *Submission) markGraded(score float64, at time.Time) {
	s.Score = null.Float64From(score)
	s.IsGraded = true
	s.GradedAt = null.TimeFrom(at.UTC())
}

// setPublished toggles publication; only graded submissions can be published.
func (s *Submission) setPublished(published bool) error {
	if published && !s.IsGraded {
		return fieldError(errNotGraded, "is_published")
	}
	s.IsPublished = published
	return nil
}

type Class struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TeacherID int64  `json:"teacher_id"`
}

type Course struct {
	ID          int64      `json:"id"`
	ClassID     null.Int64 `json:"class_id"`
	TeacherID   int64      `json:"teacher_id"`
	Title       string     `json:"title"`
	IsPublished bool       `json:"is_published"`
}

type ContentBlock struct {
	ID         int64           `json:"id"`
	CourseID   int64           `json:"course_id"`
	Kind       string          `json:"type"`
	Title      string          `json:"title"`
	Content    json.RawMessage `json:"content"`
	OrderIndex int             `json:"order_index"`
	IsRequired bool            `json:"is_required"`
}

type testBlockContent struct {
	TestID int64 `json:"testId"`
}

// LinkedTestID decodes the test id referenced by a test-kind block.
func (b ContentBlock) LinkedTestID() (int64, bool) {
	if b.Kind != BlockKindTest || len(b.Content) == 0 {
		return 0, false
	}
	var c testBlockContent
	if err := json.Unmarshal(b.Content, &c); err != nil || c.TestID == 0 {
		return 0, false
	}
	return c.TestID, true
}

// DeadlineEvent is the calendar mirror of a published, class-scoped, due-dated test.
type DeadlineEvent struct {
	ID          int64     `json:"id"`
	TestID      int64     `json:"test_id"`
	ClassID     int64     `json:"class_id"`
	TeacherID   int64     `json:"teacher_id"`
	CreatedBy   int64     `json:"created_by"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventType   string    `json:"event_type"`
	Visibility  string    `json:"visibility"`
	StartDate   core.Date `json:"start_date"`
	EndDate     core.Date `json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TestStats counts a test's submissions.
type TestStats struct {
	Total     int `json:"total"`
	Graded    int `json:"graded"`
	Published int `json:"published"`
}

// TestSummary is a staff listing row.
type TestSummary struct {
	Test
	State TestState `json:"state"`
	Stats TestStats `json:"stats"`
}

// TestDetail is the staff view of a test, secrets included.
type TestDetail struct {
	Test
	State     TestState  `json:"state"`
	Questions []Question `json:"questions"`
}

// Inputs

// NewTest contains information needed to create a new Test.
type NewTest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	ClassID     int64  `json:"class_id" validate:"required"`
	CourseID    int64  `json:"course_id"`
	OwnerID     int64  `json:"owner_id"` // admins only; defaults to the class teacher
	TimeLimit   int    `json:"time_limit" validate:"omitempty,min=1"`
	TotalScore  int    `json:"total_score" validate:"omitempty,min=1"`
	DueDate     string `json:"due_date" validate:"required,dateonly"`
	PublishAt   string `json:"publish_at"`
	Publish     bool   `json:"publish"`
}

func (nt *NewTest) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.DueDate = core.CleanString(nt.DueDate)
	nt.PublishAt = core.CleanString(nt.PublishAt)
	return core.Validate.Struct(nt)
}

// UpdateTest defines what information may be provided to modify an existing Test.
// Nil fields are left untouched; a zero value clears a nullable field
// ("" for dates and publish time, 0 for class and time limit).
type UpdateTest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ClassID     *int64  `json:"class_id" validate:"omitempty,min=0"`
	CourseID    *int64  `json:"course_id"`
	TimeLimit   *int    `json:"time_limit" validate:"omitempty,min=0"`
	TotalScore  *int    `json:"total_score" validate:"omitempty,min=1"`
	DueDate     *string `json:"due_date" validate:"omitempty,dateonly"`
	PublishAt   *string `json:"publish_at"`
	IsPublished *bool   `json:"is_published"`
}

func (ut *UpdateTest) Validate() error {
	if ut.Title != nil {
		title := core.CleanString(*ut.Title)
		if title == "" {
			return fieldError(errTitleRequired, "title")
		}
		ut.Title = &title
	}
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	if ut.DueDate != nil {
		due := core.CleanString(*ut.DueDate)
		ut.DueDate = &due
	}
	return core.Validate.Struct(ut)
}

// NewQuestion contains information needed to add a Question to a Test.
type NewQuestion struct {
	Type         string          `json:"type" validate:"required,qtype"`
	QuestionText string          `json:"question_text" validate:"required"`
	Payload      json.RawMessage `json:"payload"`
	Points       *float64        `json:"points" validate:"omitempty,min=0"`
	OrderIndex   *int            `json:"order_index" validate:"omitempty,min=0"`
}

func (nq *NewQuestion) Validate() error {
	nq.QuestionText = core.CleanString(nq.QuestionText)
	return core.Validate.Struct(nq)
}

// UpdateQuestion defines what information may be provided to modify an existing Question.
// Changing the type requires a payload of the new type.
type UpdateQuestion struct {
	Type         *string         `json:"type" validate:"omitempty,qtype"`
	QuestionText *string         `json:"question_text"`
	Payload      json.RawMessage `json:"payload"`
	Points       *float64        `json:"points" validate:"omitempty,min=0"`
}

func (uq *UpdateQuestion) Validate() error {
	if uq.QuestionText != nil {
		text := core.CleanString(*uq.QuestionText)
		if text == "" {
			return fieldError(errQuestionTextRequired, "question_text")
		}
		uq.QuestionText = &text
	}
	return core.Validate.Struct(uq)
}

// GradeSubmission is a teacher's grading decision.
// A nil Score is computed from the (overridden) outcomes.
type GradeSubmission struct {
	Score    *float64          `json:"score" validate:"omitempty,min=0"`
	Outcomes []OutcomeOverride `json:"outcomes" validate:"dive"`
	Feedback *string           `json:"feedback"`
	// Publish sets the publication state; nil keeps the current one.
	Publish  *bool             `json:"publish"`
}

func (gs *GradeSubmission) Validate() error {
	return core.Validate.Struct(gs)
}
