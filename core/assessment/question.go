package assessment

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core/user"
)

// QueryQuestions returns a test's questions, answer keys included.
func (svc *Service) QueryQuestions(ctx context.Context, usr user.User, testID int64) ([]Question, error) {
	if _, err := svc.getManagedTest(ctx, usr, testID); err != nil {
		return nil, err
	}
	questions, err := svc.questions.QueryQuestions(ctx, testID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questions, nil
}

func (svc *Service) CreateQuestion(ctx context.Context, usr user.User, testID int64, nq NewQuestion) (Question, error) {
	if err := nq.Validate(); err != nil {
		return Question{}, err
	}
	if _, err := svc.getManagedTest(ctx, usr, testID); err != nil {
		return Question{}, err
	}

	qt, _ := ParseQuestionType(nq.Type)
	payload, err := decodePayload(qt, nq.Payload)
	if err != nil {
		return Question{}, err
	}

	q := Question{
		TestID:       testID,
		Type:         qt,
		QuestionText: nq.QuestionText,
		Payload:      payload,
		Points:       DefaultQuestionPoints,
	}
	if nq.Points != nil {
		q.Points = *nq.Points
	}
	if nq.OrderIndex != nil {
		q.OrderIndex = *nq.OrderIndex
	} else {
		existing, err := svc.questions.QueryQuestions(ctx, testID)
		if err != nil {
			return Question{}, errors.Wrap(err, "querying questions")
		}
		for _, e := range existing {
			if e.OrderIndex >= q.OrderIndex {
				q.OrderIndex = e.OrderIndex + 1
			}
		}
	}

	if q, err = svc.questions.CreateQuestion(ctx, q); err != nil {
		return Question{}, errors.Wrap(err, "creating question")
	}
	return q, nil
}

func (svc *Service) UpdateQuestion(ctx context.Context, usr user.User, id int64, uq UpdateQuestion) (Question, error) {
	if err := uq.Validate(); err != nil {
		return Question{}, err
	}
	q, err := svc.questions.GetQuestionByID(ctx, id)
	if err != nil {
		return Question{}, errors.Wrap(err, "getting question")
	}
	if _, err := svc.getManagedTest(ctx, usr, q.TestID); err != nil {
		return Question{}, err
	}

	qt := q.Type
	if uq.Type != nil {
		qt, _ = ParseQuestionType(*uq.Type)
	}
	switch {
	case len(uq.Payload) > 0:
		if q.Payload, err = decodePayload(qt, uq.Payload); err != nil {
			return Question{}, err
		}
	case qt != q.Type:
		return Question{}, fieldError(errors.Errorf("a %s payload is required", qt), "payload")
	}
	q.Type = qt

	if uq.QuestionText != nil {
		q.QuestionText = *uq.QuestionText
	}
	if uq.Points != nil {
		q.Points = *uq.Points
	}

	if q, err = svc.questions.UpdateQuestion(ctx, q); err != nil {
		return Question{}, errors.Wrap(err, "updating question")
	}
	return q, nil
}

func (svc *Service) DeleteQuestion(ctx context.Context, usr user.User, id int64) error {
	q, err := svc.questions.GetQuestionByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	if _, err := svc.getManagedTest(ctx, usr, q.TestID); err != nil {
		return err
	}
	if err := svc.questions.DeleteQuestion(ctx, id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return nil
}

// ReorderQuestions gives ids[i] order index i. ids must be exactly the test's question ids.
func (svc *Service) ReorderQuestions(ctx context.Context, usr user.User, testID int64, ids []int64) ([]Question, error) {
	if _, err := svc.getManagedTest(ctx, usr, testID); err != nil {
		return nil, err
	}
	existing, err := svc.questions.QueryQuestions(ctx, testID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	if !sameIDSet(existing, ids) {
		return nil, fieldError(errReorderMismatch, "question_ids")
	}

	if err := svc.questions.ReorderQuestions(ctx, testID, ids); err != nil {
		return nil, errors.Wrap(err, "reordering questions")
	}
	questions, err := svc.questions.QueryQuestions(ctx, testID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questions, nil
}

// decodePayload decodes and validates raw as a payload of type qt.
func decodePayload(qt QuestionType, raw json.RawMessage) (Payload, error) {
	p, err := DecodePayload(qt, raw)
	if err != nil {
		return nil, fieldError(err, "payload")
	}
	if err := p.Validate(); err != nil {
		return nil, fieldError(err, "payload")
	}
	return p, nil
}

func sameIDSet(questions []Question, ids []int64) bool {
	if len(questions) != len(ids) {
		return false
	}
	seen := make(map[int64]bool, len(ids))
	for _, q := range questions {
		seen[q.ID] = false
	}
	for _, id := range ids {
		used, ok := seen[id]
		if !ok || used {
			return false
		}
		seen[id] = true
	}
	return true
}
