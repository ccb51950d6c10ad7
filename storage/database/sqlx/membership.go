package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/membership"
)

type rosterBackend struct {
	db core.DB
}

var _ membership.Backend = (*rosterBackend)(nil) // interface compliance check

// NewRosterBackend resolves memberships from the class_students and course_students rosters.
func NewRosterBackend(db core.DB) membership.Backend {
	return &rosterBackend{db: db}
}

func (b *rosterBackend) StudentClassIDs(ctx context.Context, studentID int64) ([]int64, error) {
	return selectIDs(ctx, b.db, "SELECT class_id FROM class_students WHERE student_id = ? ORDER BY class_id", studentID)
}

func (b *rosterBackend) StudentCourseIDs(ctx context.Context, studentID int64) ([]int64, error) {
	return selectIDs(ctx, b.db, "SELECT course_id FROM course_students WHERE student_id = ? ORDER BY course_id", studentID)
}

func (b *rosterBackend) ClassStudentIDs(ctx context.Context, classID int64) ([]int64, error) {
	return selectIDs(ctx, b.db, "SELECT student_id FROM class_students WHERE class_id = ? ORDER BY student_id", classID)
}

func (b *rosterBackend) CourseStudentIDs(ctx context.Context, courseID int64) ([]int64, error) {
	return selectIDs(ctx, b.db, "SELECT student_id FROM course_students WHERE course_id = ? ORDER BY student_id", courseID)
}

type legacyBackend struct {
	db core.DB
}

var _ membership.Backend = (*legacyBackend)(nil) // interface compliance check

// NewLegacyBackend resolves class memberships from students.class_id.
//
// Deprecated: the roster is the source of truth; this backend remains until every
// student's legacy class is migrated onto the roster.
func NewLegacyBackend(db core.DB) membership.Backend {
	return &legacyBackend{db: db}
}

func (b *legacyBackend) StudentClassIDs(ctx context.Context, studentID int64) ([]int64, error) {
	return selectIDs(ctx, b.db, "SELECT class_id FROM students WHERE user_id = ? AND class_id IS NOT NULL", studentID)
}

func (b *legacyBackend) StudentCourseIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func (b *legacyBackend) ClassStudentIDs(ctx context.Context, classID int64) ([]int64, error) {
	return selectIDs(ctx, b.db, "SELECT user_id FROM students WHERE class_id = ? ORDER BY user_id", classID)
}

func (b *legacyBackend) CourseStudentIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func selectIDs(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]int64, error) {
	var ids []int64
	if err := exec.SelectContext(ctx, &ids, exec.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting membership")
	}
	return ids, nil
}
