package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
)

type testRow struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	OwnerID     int64      `db:"owner_id"`
	ClassID     null.Int64 `db:"class_id"`
	TimeLimit   null.Int   `db:"time_limit"`
	TotalScore  int        `db:"total_score"`
	IsPublished bool       `db:"is_published"`
	PublishAt   null.Time  `db:"publish_at"`
	DueDate     core.Date  `db:"due_date"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

const testColumns = `id, title, description, owner_id, class_id, time_limit, total_score,
	is_published, publish_at, due_date, created_at, updated_at`

type testRepository struct {
	db core.DB
}

var _ assessment.TestRepository = (*testRepository)(nil) // interface compliance check

func NewTestRepository(db core.DB) assessment.TestRepository {
	return &testRepository{db: db}
}

func (repo *testRepository) CreateTest(ctx context.Context, t assessment.Test) (assessment.Test, error) {
	id, err := insert(
		ctx,
		repo.db,
		`INSERT INTO tests (title, description, owner_id, class_id, time_limit, total_score,
			is_published, publish_at, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.Title, t.Description, t.OwnerID, t.ClassID, t.TimeLimit, t.TotalScore,
		t.IsPublished, utcTime(t.PublishAt), t.DueDate, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return assessment.Test{}, errors.Wrap(err, "inserting test")
	}
	t.ID = id
	return t, nil
}

func (repo *testRepository) GetTestByID(ctx context.Context, id int64) (assessment.Test, error) {
	return getTest(ctx, repo.db, id)
}

func getTest(ctx context.Context, exec core.DBExecutor, id int64) (assessment.Test, error) {
	var row testRow
	if err := exec.GetContext(ctx, &row, exec.Rebind("SELECT "+testColumns+" FROM tests WHERE id = ?"), id); err != nil {
		return assessment.Test{}, trapNoRowsErr(err, assessment.ErrTestNotFound, "selecting test")
	}
	return unboilTest(row), nil
}

func (repo *testRepository) QueryTests(ctx context.Context, filter assessment.TestFilter) ([]assessment.Test, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.OwnerID != 0 {
		w.add("owner_id = ?", filter.OwnerID)
	}
	if len(filter.ClassIDs) > 0 {
		w.add("class_id IN (?)", filter.ClassIDs)
	}
	if filter.PublishedOnly {
		w.add("is_published = ?", true)
	}
	if filter.DueBefore.Valid {
		w.add("is_published = ? AND publish_at IS NOT NULL AND publish_at <= ?", false, filter.DueBefore.Time.UTC())
	}

	var rows []testRow
	if err := selectIn(ctx, repo.db, &rows, "SELECT "+testColumns+" FROM tests"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting tests")
	}
	tests := make([]assessment.Test, len(rows))
	for i, row := range rows {
		tests[i] = unboilTest(row)
	}
	return tests, nil
}

func (repo *testRepository) UpdateTest(ctx context.Context, t assessment.Test) (assessment.Test, error) {
	res, err := repo.db.ExecContext(
		ctx,
		repo.db.Rebind(`UPDATE tests SET title = ?, description = ?, owner_id = ?, class_id = ?, time_limit = ?,
			total_score = ?, publish_at = ?, due_date = ?, updated_at = ? WHERE id = ?`),
		t.Title, t.Description, t.OwnerID, t.ClassID, t.TimeLimit,
		t.TotalScore, utcTime(t.PublishAt), t.DueDate, t.UpdatedAt.UTC(), t.ID,
	)
	if err := checkAffected(res, err, assessment.ErrTestNotFound, "updating test"); err != nil {
		return assessment.Test{}, err
	}
	return repo.GetTestByID(ctx, t.ID)
}

func (repo *testRepository) SetTestPublished(ctx context.Context, id int64, published bool, publishAt null.Time, at time.Time) (assessment.Test, error) {
	res, err := repo.db.ExecContext(
		ctx,
		repo.db.Rebind("UPDATE tests SET is_published = ?, publish_at = ?, updated_at = ? WHERE id = ?"),
		published, utcTime(publishAt), at.UTC(), id,
	)
	if err := checkAffected(res, err, assessment.ErrTestNotFound, "publishing test"); err != nil {
		return assessment.Test{}, err
	}
	return repo.GetTestByID(ctx, id)
}

func (repo *testRepository) DeleteTest(ctx context.Context, id int64) error {
	return inTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if _, err := getTest(ctx, tx, id); err != nil {
			return err
		}

		blockIDs, err := linkingBlockIDs(ctx, tx, []int64{id})
		if err != nil {
			return err
		}
		if len(blockIDs) > 0 {
			if _, err := execIn(ctx, tx, "DELETE FROM content_blocks WHERE id IN (?)", blockIDs); err != nil {
				return errors.Wrap(err, "deleting linking blocks")
			}
		}

		for _, stmt := range []struct{ query, what string }{
			{"DELETE FROM deadline_events WHERE test_id = ?", "deadline events"},
			{"DELETE FROM submissions WHERE test_id = ?", "submissions"},
			{"DELETE FROM questions WHERE test_id = ?", "questions"},
			{"DELETE FROM tests WHERE id = ?", "test"},
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt.query), id); err != nil {
				return errors.Wrapf(err, "deleting %s", stmt.what)
			}
		}
		return nil
	})
}

func unboilTest(row testRow) assessment.Test {
	return assessment.Test{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		OwnerID:     row.OwnerID,
		ClassID:     row.ClassID,
		TimeLimit:   row.TimeLimit,
		TotalScore:  row.TotalScore,
		IsPublished: row.IsPublished,
		PublishAt:   utcTime(row.PublishAt),
		DueDate:     row.DueDate,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func utcTime(t null.Time) null.Time {
	if t.Valid {
		t.Time = t.Time.UTC()
	}
	return t
}
