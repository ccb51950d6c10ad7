package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
)

type (
	classRow struct {
		ID        int64  `db:"id"`
		Name      string `db:"name"`
		TeacherID int64  `db:"teacher_id"`
	}

	courseRow struct {
		ID          int64      `db:"id"`
		ClassID     null.Int64 `db:"class_id"`
		TeacherID   int64      `db:"teacher_id"`
		Title       string     `db:"title"`
		IsPublished bool       `db:"is_published"`
	}

	blockRow struct {
		ID         int64          `db:"id"`
		CourseID   int64          `db:"course_id"`
		Kind       string         `db:"type"`
		Title      string         `db:"title"`
		Content    types.JSONText `db:"content"`
		OrderIndex int            `db:"order_index"`
		IsRequired bool           `db:"is_required"`
	}
)

const (
	classColumns  = "id, name, teacher_id"
	courseColumns = "id, class_id, teacher_id, title, is_published"
	blockColumns  = "id, course_id, type, title, content, order_index, is_required"
)

type courseRepository struct {
	db core.DB
}

var _ assessment.CourseRepository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) assessment.CourseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) GetClass(ctx context.Context, id int64) (assessment.Class, error) {
	var row classRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+classColumns+" FROM classes WHERE id = ?"), id); err != nil {
		return assessment.Class{}, trapNoRowsErr(err, assessment.ErrClassNotFound, "selecting class")
	}
	return assessment.Class(row), nil
}

func (repo *courseRepository) QueryClasses(ctx context.Context, filter assessment.ClassFilter) ([]assessment.Class, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.TeacherID != 0 {
		w.add("teacher_id = ?", filter.TeacherID)
	}

	var rows []classRow
	if err := selectIn(ctx, repo.db, &rows, "SELECT "+classColumns+" FROM classes"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	classes := make([]assessment.Class, len(rows))
	for i, row := range rows {
		classes[i] = assessment.Class(row)
	}
	return classes, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int64) (assessment.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+courseColumns+" FROM courses WHERE id = ?"), id); err != nil {
		return assessment.Course{}, trapNoRowsErr(err, assessment.ErrCourseNotFound, "selecting course")
	}
	return assessment.Course(row), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter assessment.CourseFilter) ([]assessment.Course, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if len(filter.ClassIDs) > 0 {
		w.add("class_id IN (?)", filter.ClassIDs)
	}

	var rows []courseRow
	if err := selectIn(ctx, repo.db, &rows, "SELECT "+courseColumns+" FROM courses"+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]assessment.Course, len(rows))
	for i, row := range rows {
		courses[i] = assessment.Course(row)
	}
	return courses, nil
}

func (repo *courseRepository) QueryContentBlocks(ctx context.Context, filter assessment.BlockFilter) ([]assessment.ContentBlock, error) {
	return queryBlocks(ctx, repo.db, filter)
}

// queryBlocks filters on the linked test in Go, the content column being free-form JSON.
func queryBlocks(ctx context.Context, exec core.DBExecutor, filter assessment.BlockFilter) ([]assessment.ContentBlock, error) {
	var w where
	if len(filter.CourseIDs) > 0 {
		w.add("course_id IN (?)", filter.CourseIDs)
	}
	if filter.Kind != "" {
		w.add("type = ?", filter.Kind)
	}
	if len(filter.TestIDs) > 0 {
		w.add("type = ?", assessment.BlockKindTest)
	}

	var rows []blockRow
	q := "SELECT " + blockColumns + " FROM content_blocks" + w.String() + " ORDER BY course_id, order_index, id"
	if err := selectIn(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting content blocks")
	}

	blocks := make([]assessment.ContentBlock, 0, len(rows))
	for _, row := range rows {
		b := unboilBlock(row)
		if len(filter.TestIDs) > 0 {
			id, ok := b.LinkedTestID()
			if !ok || !containsID(filter.TestIDs, id) {
				continue
			}
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func linkingBlockIDs(ctx context.Context, exec core.DBExecutor, testIDs []int64) ([]int64, error) {
	blocks, err := queryBlocks(ctx, exec, assessment.BlockFilter{TestIDs: testIDs})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	return ids, nil
}

func (repo *courseRepository) CreateContentBlock(ctx context.Context, b assessment.ContentBlock) (assessment.ContentBlock, error) {
	content := b.Content
	if len(content) == 0 {
		content = json.RawMessage("{}")
	}
	id, err := insert(
		ctx,
		repo.db,
		`INSERT INTO content_blocks (course_id, type, title, content, order_index, is_required)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		b.CourseID, b.Kind, b.Title, string(content), b.OrderIndex, b.IsRequired,
	)
	if err != nil {
		return assessment.ContentBlock{}, errors.Wrap(err, "inserting content block")
	}
	b.ID = id
	b.Content = content
	return b, nil
}

func unboilBlock(row blockRow) assessment.ContentBlock {
	return assessment.ContentBlock{
		ID:         row.ID,
		CourseID:   row.CourseID,
		Kind:       row.Kind,
		Title:      row.Title,
		Content:    json.RawMessage(row.Content),
		OrderIndex: row.OrderIndex,
		IsRequired: row.IsRequired,
	}
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
