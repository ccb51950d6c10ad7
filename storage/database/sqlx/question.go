package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
)

type questionRow struct {
	ID           int64          `db:"id"`
	TestID       int64          `db:"test_id"`
	Type         string         `db:"type"`
	QuestionText string         `db:"question_text"`
	Payload      types.JSONText `db:"payload"`
	Points       float64        `db:"points"`
	OrderIndex   int            `db:"order_index"`
}

const questionColumns = "id, test_id, type, question_text, payload, points, order_index"

type questionRepository struct {
	db core.DB
}

var _ assessment.QuestionRepository = (*questionRepository)(nil) // interface compliance check

func NewQuestionRepository(db core.DB) assessment.QuestionRepository {
	return &questionRepository{db: db}
}

func (repo *questionRepository) CreateQuestion(ctx context.Context, q assessment.Question) (assessment.Question, error) {
	payload, err := json.Marshal(q.Payload)
	if err != nil {
		return assessment.Question{}, errors.Wrap(err, "encoding payload")
	}
	id, err := insert(
		ctx,
		repo.db,
		`INSERT INTO questions (test_id, type, question_text, payload, points, order_index)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		q.TestID, string(q.Type), q.QuestionText, string(payload), q.Points, q.OrderIndex,
	)
	if err != nil {
		return assessment.Question{}, errors.Wrap(err, "inserting question")
	}
	q.ID = id
	return q, nil
}

func (repo *questionRepository) GetQuestionByID(ctx context.Context, id int64) (assessment.Question, error) {
	var row questionRow
	q := repo.db.Rebind("SELECT " + questionColumns + " FROM questions WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return assessment.Question{}, trapNoRowsErr(err, assessment.ErrQuestionNotFound, "selecting question")
	}
	return unboilQuestion(row)
}

func (repo *questionRepository) QueryQuestions(ctx context.Context, testID int64) ([]assessment.Question, error) {
	var rows []questionRow
	q := repo.db.Rebind("SELECT " + questionColumns + " FROM questions WHERE test_id = ? ORDER BY order_index, id")
	if err := repo.db.SelectContext(ctx, &rows, q, testID); err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}
	questions := make([]assessment.Question, len(rows))
	for i, row := range rows {
		question, err := unboilQuestion(row)
		if err != nil {
			return nil, err
		}
		questions[i] = question
	}
	return questions, nil
}

func (repo *questionRepository) UpdateQuestion(ctx context.Context, q assessment.Question) (assessment.Question, error) {
	payload, err := json.Marshal(q.Payload)
	if err != nil {
		return assessment.Question{}, errors.Wrap(err, "encoding payload")
	}
	res, err := repo.db.ExecContext(
		ctx,
		repo.db.Rebind("UPDATE questions SET type = ?, question_text = ?, payload = ?, points = ?, order_index = ? WHERE id = ?"),
		string(q.Type), q.QuestionText, string(payload), q.Points, q.OrderIndex, q.ID,
	)
	if err := checkAffected(res, err, assessment.ErrQuestionNotFound, "updating question"); err != nil {
		return assessment.Question{}, err
	}
	return repo.GetQuestionByID(ctx, q.ID)
}

func (repo *questionRepository) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM questions WHERE id = ?"), id)
	return checkAffected(res, err, assessment.ErrQuestionNotFound, "deleting question")
}

func (repo *questionRepository) ReorderQuestions(ctx context.Context, testID int64, ids []int64) error {
	return inTx(ctx, repo.db, func(tx core.DBExecutor) error {
		q := tx.Rebind("UPDATE questions SET order_index = ? WHERE id = ? AND test_id = ?")
		for i, id := range ids {
			res, err := tx.ExecContext(ctx, q, i, id, testID)
			if err := checkAffected(res, err, assessment.ErrQuestionNotFound, "reordering questions"); err != nil {
				return err
			}
		}
		return nil
	})
}

func unboilQuestion(row questionRow) (assessment.Question, error) {
	qt := assessment.QuestionType(row.Type)
	payload, err := assessment.DecodePayload(qt, json.RawMessage(row.Payload))
	if err != nil {
		return assessment.Question{}, errors.Wrapf(err, "decoding question %d", row.ID)
	}
	return assessment.Question{
		ID:           row.ID,
		TestID:       row.TestID,
		Type:         qt,
		QuestionText: row.QuestionText,
		Payload:      payload,
		Points:       row.Points,
		OrderIndex:   row.OrderIndex,
	}, nil
}
