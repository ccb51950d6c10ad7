package inmemdb

import (
	"context"
	"sort"

	"github.com/bangkihwa/studylink/core/membership"
)

type rosterBackend struct {
	db *DB
}

var _ membership.Backend = (*rosterBackend)(nil) // interface compliance check

// NewRosterBackend resolves memberships from the class and course rosters.
func NewRosterBackend(db *DB) membership.Backend {
	return &rosterBackend{db: db}
}

func (b *rosterBackend) StudentClassIDs(_ context.Context, studentID int64) ([]int64, error) {
	b.db.mutex.RLock()
	defer b.db.mutex.RUnlock()
	return groupsOf(b.db.classStudents, studentID), nil
}

func (b *rosterBackend) StudentCourseIDs(_ context.Context, studentID int64) ([]int64, error) {
	b.db.mutex.RLock()
	defer b.db.mutex.RUnlock()
	return groupsOf(b.db.courseStudents, studentID), nil
}

func (b *rosterBackend) ClassStudentIDs(_ context.Context, classID int64) ([]int64, error) {
	b.db.mutex.RLock()
	defer b.db.mutex.RUnlock()
	return membersOf(b.db.classStudents, classID), nil
}

func (b *rosterBackend) CourseStudentIDs(_ context.Context, courseID int64) ([]int64, error) {
	b.db.mutex.RLock()
	defer b.db.mutex.RUnlock()
	return membersOf(b.db.courseStudents, courseID), nil
}

type legacyBackend struct {
	db *DB
}

var _ membership.Backend = (*legacyBackend)(nil) // interface compliance check

// NewLegacyBackend resolves class memberships from the class recorded on each student.
//
// Deprecated: the roster is the source of truth; this backend remains until every
// student's legacy class is migrated onto the roster.
func NewLegacyBackend(db *DB) membership.Backend {
	return &legacyBackend{db: db}
}

func (b *legacyBackend) StudentClassIDs(_ context.Context, studentID int64) ([]int64, error) {
	b.db.mutex.RLock()
	defer b.db.mutex.RUnlock()

	if classID, ok := b.db.legacyClass[studentID]; ok {
		return []int64{classID}, nil
	}
	return nil, nil
}

func (b *legacyBackend) StudentCourseIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func (b *legacyBackend) ClassStudentIDs(_ context.Context, classID int64) ([]int64, error) {
	b.db.mutex.RLock()
	defer b.db.mutex.RUnlock()

	var ids []int64
	for studentID, cid := range b.db.legacyClass {
		if cid == classID {
			ids = append(ids, studentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (b *legacyBackend) CourseStudentIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func groupsOf(roster map[int64]map[int64]bool, studentID int64) []int64 {
	var ids []int64
	for groupID, students := range roster {
		if students[studentID] {
			ids = append(ids, groupID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func membersOf(roster map[int64]map[int64]bool, groupID int64) []int64 {
	ids := make([]int64, 0, len(roster[groupID]))
	for studentID := range roster[groupID] {
		ids = append(ids, studentID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
