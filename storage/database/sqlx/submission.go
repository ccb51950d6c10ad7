package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
)

type submissionRow struct {
	ID            int64          `db:"id"`
	TestID        int64          `db:"test_id"`
	StudentID     int64          `db:"student_id"`
	RawAnswers    types.JSONText `db:"raw_answers"`
	GradedAnswers types.JSONText `db:"graded_answers"`
	Feedback      null.String    `db:"feedback"`
	Score         null.Float64   `db:"score"`
	IsGraded      bool           `db:"is_graded"`
	IsPublished   bool           `db:"is_published"`
	SubmittedAt   time.Time      `db:"submitted_at"`
	GradedAt      null.Time      `db:"graded_at"`
}

const submissionColumns = `id, test_id, student_id, raw_answers, graded_answers, feedback, score,
	is_graded, is_published, submitted_at, graded_at`

type submissionRepository struct {
	db core.DB
}

var _ assessment.SubmissionRepository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db core.DB) assessment.SubmissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, s assessment.Submission) (assessment.Submission, error) {
	raw, graded, err := encodeAnswers(s)
	if err != nil {
		return assessment.Submission{}, err
	}
	id, err := insert(
		ctx,
		repo.db,
		`INSERT INTO submissions (test_id, student_id, raw_answers, graded_answers, feedback, score,
			is_graded, is_published, submitted_at, graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		s.TestID, s.StudentID, raw, graded, s.Feedback, s.Score,
		s.IsGraded, s.IsPublished, s.SubmittedAt.UTC(), utcTime(s.GradedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return assessment.Submission{}, assessment.ErrSubmissionDup
		}
		return assessment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	s.ID = id
	return s, nil
}

func (repo *submissionRepository) GetSubmissionByID(ctx context.Context, id int64) (assessment.Submission, error) {
	return repo.getSubmission(ctx, "id = ?", id)
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, testID, studentID int64) (assessment.Submission, error) {
	return repo.getSubmission(ctx, "test_id = ? AND student_id = ?", testID, studentID)
}

func (repo *submissionRepository) getSubmission(ctx context.Context, cond string, args ...interface{}) (assessment.Submission, error) {
	var row submissionRow
	q := repo.db.Rebind("SELECT " + submissionColumns + " FROM submissions WHERE " + cond)
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return assessment.Submission{}, trapNoRowsErr(err, assessment.ErrSubmissionNotFound, "selecting submission")
	}
	return unboilSubmission(row)
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter assessment.SubmissionFilter) ([]assessment.Submission, error) {
	var w where
	if len(filter.TestIDs) > 0 {
		w.add("test_id IN (?)", filter.TestIDs)
	}
	if filter.StudentID != 0 {
		w.add("student_id = ?", filter.StudentID)
	}

	var rows []submissionRow
	if err := selectIn(ctx, repo.db, &rows, "SELECT "+submissionColumns+" FROM submissions"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]assessment.Submission, len(rows))
	for i, row := range rows {
		sub, err := unboilSubmission(row)
		if err != nil {
			return nil, err
		}
		subs[i] = sub
	}
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, s assessment.Submission) (assessment.Submission, error) {
	_, graded, err := encodeAnswers(s)
	if err != nil {
		return assessment.Submission{}, err
	}
	res, err := repo.db.ExecContext(
		ctx,
		repo.db.Rebind(`UPDATE submissions SET graded_answers = ?, feedback = ?, score = ?,
			is_graded = ?, is_published = ?, graded_at = ? WHERE id = ?`),
		graded, s.Feedback, s.Score, s.IsGraded, s.IsPublished, utcTime(s.GradedAt), s.ID,
	)
	if err := checkAffected(res, err, assessment.ErrSubmissionNotFound, "updating submission"); err != nil {
		return assessment.Submission{}, err
	}
	return repo.GetSubmissionByID(ctx, s.ID)
}

func encodeAnswers(s assessment.Submission) (raw, graded string, err error) {
	answers := s.RawAnswers
	if answers == nil {
		answers = assessment.Answers{}
	}
	outcomes := s.GradedAnswers
	if outcomes == nil {
		outcomes = []assessment.Outcome{}
	}
	rawJSON, err := json.Marshal(answers)
	if err != nil {
		return "", "", errors.Wrap(err, "encoding answers")
	}
	gradedJSON, err := json.Marshal(outcomes)
	if err != nil {
		return "", "", errors.Wrap(err, "encoding outcomes")
	}
	return string(rawJSON), string(gradedJSON), nil
}

func unboilSubmission(row submissionRow) (assessment.Submission, error) {
	s := assessment.Submission{
		ID:          row.ID,
		TestID:      row.TestID,
		StudentID:   row.StudentID,
		Feedback:    row.Feedback,
		Score:       row.Score,
		IsGraded:    row.IsGraded,
		IsPublished: row.IsPublished,
		SubmittedAt: row.SubmittedAt.UTC(),
		GradedAt:    utcTime(row.GradedAt),
	}
	if err := row.RawAnswers.Unmarshal(&s.RawAnswers); err != nil {
		return assessment.Submission{}, errors.Wrapf(err, "decoding answers of submission %d", row.ID)
	}
	if err := row.GradedAnswers.Unmarshal(&s.GradedAnswers); err != nil {
		return assessment.Submission{}, errors.Wrapf(err, "decoding outcomes of submission %d", row.ID)
	}
	return s, nil
}
