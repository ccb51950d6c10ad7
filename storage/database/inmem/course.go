package inmemdb

import (
	"context"
	"sort"

	"github.com/bangkihwa/studylink/core/assessment"
)

type courseRepository struct {
	db *DB
}

var _ assessment.CourseRepository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) assessment.CourseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) GetClass(_ context.Context, id int64) (assessment.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return *c, nil
	}
	return assessment.Class{}, assessment.ErrClassNotFound
}

func (repo *courseRepository) QueryClasses(_ context.Context, filter assessment.ClassFilter) ([]assessment.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]assessment.Class, 0)
	for _, c := range repo.db.classes {
		if len(filter.IDs) > 0 && !containsID(filter.IDs, c.ID) {
			continue
		}
		if filter.TeacherID != 0 && c.TeacherID != filter.TeacherID {
			continue
		}
		classes = append(classes, *c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	return classes, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id int64) (assessment.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return assessment.Course{}, assessment.ErrCourseNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter assessment.CourseFilter) ([]assessment.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]assessment.Course, 0)
	for _, c := range repo.db.courses {
		if len(filter.IDs) > 0 && !containsID(filter.IDs, c.ID) {
			continue
		}
		if len(filter.ClassIDs) > 0 && (!c.ClassID.Valid || !containsID(filter.ClassIDs, c.ClassID.Int64)) {
			continue
		}
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) QueryContentBlocks(_ context.Context, filter assessment.BlockFilter) ([]assessment.ContentBlock, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	blocks := make([]assessment.ContentBlock, 0)
	for _, b := range repo.db.blocks {
		if len(filter.CourseIDs) > 0 && !containsID(filter.CourseIDs, b.CourseID) {
			continue
		}
		if filter.Kind != "" && b.Kind != filter.Kind {
			continue
		}
		if len(filter.TestIDs) > 0 {
			id, ok := b.LinkedTestID()
			if !ok || !containsID(filter.TestIDs, id) {
				continue
			}
		}
		blocks = append(blocks, *b)
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].CourseID != blocks[j].CourseID {
			return blocks[i].CourseID < blocks[j].CourseID
		}
		if blocks[i].OrderIndex != blocks[j].OrderIndex {
			return blocks[i].OrderIndex < blocks[j].OrderIndex
		}
		return blocks[i].ID < blocks[j].ID
	})
	return blocks, nil
}

func (repo *courseRepository) CreateContentBlock(_ context.Context, b assessment.ContentBlock) (assessment.ContentBlock, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[b.CourseID]; !ok {
		return assessment.ContentBlock{}, assessment.ErrCourseNotFound
	}
	b.ID = repo.db.nextPK()
	repo.db.blocks[b.ID] = &b
	return b, nil
}

// Seeding. Classes, courses and rosters are authored outside this subsystem; these
// helpers stand in for that authoring in tests and development.

func (db *DB) CreateClass(c assessment.Class) assessment.Class {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c.ID = db.nextPK()
	db.classes[c.ID] = &c
	return c
}

func (db *DB) CreateCourse(c assessment.Course) assessment.Course {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c.ID = db.nextPK()
	db.courses[c.ID] = &c
	return c
}

// EnrollInClass adds the student to the class roster.
func (db *DB) EnrollInClass(classID, studentID int64) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	enroll(db.classStudents, classID, studentID)
}

// AssignToCourse assigns the course to the student directly.
func (db *DB) AssignToCourse(courseID, studentID int64) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	enroll(db.courseStudents, courseID, studentID)
}

// SetLegacyClass records the student's class on the student record itself.
func (db *DB) SetLegacyClass(studentID, classID int64) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.legacyClass[studentID] = classID
}

func enroll(roster map[int64]map[int64]bool, groupID, studentID int64) {
	if roster[groupID] == nil {
		roster[groupID] = make(map[int64]bool)
	}
	roster[groupID][studentID] = true
}
