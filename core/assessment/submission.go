package assessment

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core/user"
)

// SubmitTest grades and stores a student's answers. A submission with an essay stays ungraded
// until a teacher grades it.
func (svc *Service) SubmitTest(ctx context.Context, usr user.User, testID int64, answers Answers) (Submission, error) {
	t, err := svc.takeableTest(ctx, usr, testID)
	if err != nil {
		return Submission{}, err
	}

	now := svc.now()
	if cutoff, ok := t.Cutoff(svc.loc); ok && now.After(cutoff) {
		return Submission{}, ErrDeadlinePassed
	}

	switch _, err := svc.submissions.GetSubmission(ctx, t.ID, usr.ID); {
	case err == nil:
		return Submission{}, ErrSubmissionDup
	case !errors.Is(err, ErrSubmissionNotFound):
		return Submission{}, errors.Wrap(err, "getting submission")
	}

	questions, err := svc.questions.QueryQuestions(ctx, t.ID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "querying questions")
	}
	if answers == nil {
		answers = Answers{}
	}
	outcomes, score, needsManual := GradeAnswers(questions, answers)

	sub := Submission{
		TestID:        t.ID,
		StudentID:     usr.ID,
		RawAnswers:    answers,
		GradedAnswers: outcomes,
		SubmittedAt:   now,
	}
	if !needsManual {
		sub.markGraded(score, now)
	}

	if sub, err = svc.submissions.CreateSubmission(ctx, sub); err != nil {
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	return sub, nil
}

// GradeSubmission applies a teacher's grading. A set gs.Publish also publishes or hides the result.
func (svc *Service) GradeSubmission(ctx context.Context, usr user.User, id int64, gs GradeSubmission) (Submission, error) {
	if err := gs.Validate(); err != nil {
		return Submission{}, err
	}
	sub, t, err := svc.getManagedSubmission(ctx, usr, id)
	if err != nil {
		return Submission{}, err
	}

	outcomes, err := mergeOverrides(sub.GradedAnswers, gs.Outcomes)
	if err != nil {
		return Submission{}, err
	}
	score := sumAwarded(outcomes)
	if gs.Score != nil {
		score = *gs.Score
	}
	if gs.Feedback != nil {
		if fb := strings.TrimSpace(*gs.Feedback); fb != "" {
			sub.Feedback = null.StringFrom(fb)
		} else {
			sub.Feedback = null.String{}
		}
	}

	sub.GradedAnswers = outcomes
	sub.markGraded(score, svc.now())
	if gs.Publish != nil {
		if err := sub.setPublished(*gs.Publish); err != nil {
			return Submission{}, err
		}
	}
	if sub, err = svc.submissions.UpdateSubmission(ctx, sub); err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}

	if sub.IsPublished {
		svc.notifier.TestGraded(ctx, sub, t)
	}
	return sub, nil
}

// PublishSubmission shows or hides a graded result to its student.
func (svc *Service) PublishSubmission(ctx context.Context, usr user.User, id int64, published bool) (Submission, error) {
	sub, t, err := svc.getManagedSubmission(ctx, usr, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.IsPublished == published {
		return sub, nil
	}

	if err := sub.setPublished(published); err != nil {
		return Submission{}, err
	}
	if sub, err = svc.submissions.UpdateSubmission(ctx, sub); err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}

	if sub.IsPublished {
		svc.notifier.ResultPublished(ctx, sub, t)
	}
	return sub, nil
}

// QuerySubmissions lists every submission of a test.
func (svc *Service) QuerySubmissions(ctx context.Context, usr user.User, testID int64) ([]Submission, error) {
	if _, err := svc.getManagedTest(ctx, usr, testID); err != nil {
		return nil, err
	}
	subs, err := svc.submissions.QuerySubmissions(ctx, SubmissionFilter{TestIDs: []int64{testID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

// GetSubmissionResult returns a student's submission of a test. Students only read their own,
// published results; staff managing the test read any.
func (svc *Service) GetSubmissionResult(ctx context.Context, usr user.User, testID, studentID int64) (Submission, error) {
	if !usr.IsStaff() {
		if !usr.IsStudent() {
			return Submission{}, ErrForbidden
		}
		if studentID != 0 && studentID != usr.ID {
			return Submission{}, ErrOtherStudent
		}
		sub, err := svc.submissions.GetSubmission(ctx, testID, usr.ID)
		if err != nil {
			return Submission{}, errors.Wrap(err, "getting submission")
		}
		if !sub.IsPublished {
			return Submission{}, ErrResultPending
		}
		return sub, nil
	}

	if _, err := svc.getManagedTest(ctx, usr, testID); err != nil {
		return Submission{}, err
	}
	sub, err := svc.submissions.GetSubmission(ctx, testID, studentID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "getting submission")
	}
	return sub, nil
}

func (svc *Service) getManagedSubmission(ctx context.Context, usr user.User, id int64) (Submission, Test, error) {
	sub, err := svc.submissions.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, Test{}, errors.Wrap(err, "getting submission")
	}
	t, err := svc.getManagedTest(ctx, usr, sub.TestID)
	if err != nil {
		return Submission{}, Test{}, err
	}
	return sub, t, nil
}
