package assessment

import (
	"context"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/user"
)

// AttemptQuestion is a question as served to a student. View holds the payload's public view
// only and must not be named Payload, which copier would fill from Question.
type AttemptQuestion struct {
	ID           int64        `json:"id"`
	Type         QuestionType `json:"type"`
	QuestionText string       `json:"question_text"`
	Points       float64      `json:"points"`
	OrderIndex   int          `json:"order_index"`
	View         interface{}  `json:"payload"`
}

// Attempt is everything a student needs to take a test.
type Attempt struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	TimeLimit   null.Int          `json:"time_limit"`
	TotalScore  int               `json:"total_score"`
	DueDate     core.Date         `json:"due_date"`
	ClosesAt    null.Time         `json:"closes_at"` // last accepted submission instant
	Questions   []AttemptQuestion `json:"questions"`
}

// PrepareAttempt serves a published, available test to a student with the answer keys stripped.
func (svc *Service) PrepareAttempt(ctx context.Context, usr user.User, testID int64) (Attempt, error) {
	t, err := svc.takeableTest(ctx, usr, testID)
	if err != nil {
		return Attempt{}, err
	}
	questions, err := svc.questions.QueryQuestions(ctx, t.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying questions")
	}

	var att Attempt
	if err := copier.Copy(&att, &t); err != nil {
		return Attempt{}, errors.Wrap(err, "copying test")
	}
	if cutoff, ok := t.Cutoff(svc.loc); ok {
		att.ClosesAt = null.TimeFrom(cutoff)
	}

	att.Questions = make([]AttemptQuestion, len(questions))
	for i, q := range questions {
		if err := copier.Copy(&att.Questions[i], &q); err != nil {
			return Attempt{}, errors.Wrap(err, "copying question")
		}
		if q.Payload != nil {
			att.Questions[i].View = q.Payload.Public()
		}
	}
	return att, nil
}

// takeableTest loads a test the student may take right now, deadline aside.
func (svc *Service) takeableTest(ctx context.Context, usr user.User, testID int64) (Test, error) {
	if !usr.IsStudent() {
		return Test{}, ErrStudentsOnly
	}
	t, err := svc.tests.GetTestByID(ctx, testID)
	if err != nil {
		return Test{}, errors.Wrap(err, "getting test")
	}
	if !t.IsPublished {
		return Test{}, ErrNotPublished
	}
	ok, err := svc.IsAvailable(ctx, t.ID, usr.ID)
	if err != nil {
		return Test{}, err
	}
	if !ok {
		return Test{}, ErrNotAvailable
	}
	return t, nil
}
