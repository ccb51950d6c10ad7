package inmemdb

import (
	"sync"

	"github.com/bangkihwa/studylink/core/assessment"
	"github.com/bangkihwa/studylink/core/user"
)

type (
	// DB is a process-local store. One mutex guards every table so multi-table writes
	// (delete cascade, reorder) happen in a single critical section.
	DB struct {
		mutex sync.RWMutex
		pk    int64

		users       map[int64]*user.User
		classes     map[int64]*assessment.Class
		courses     map[int64]*assessment.Course
		blocks      map[int64]*assessment.ContentBlock
		tests       map[int64]*assessment.Test
		questions   map[int64]*assessment.Question
		submissions map[int64]*assessment.Submission
		events      map[int64]*assessment.DeadlineEvent

		classStudents  map[int64]map[int64]bool // class id -> student ids
		courseStudents map[int64]map[int64]bool // course id -> student ids
		legacyClass    map[int64]int64          // student id -> class id
	}
)

func Open() (*DB, error) {
	db := &DB{
		users:          make(map[int64]*user.User),
		classes:        make(map[int64]*assessment.Class),
		courses:        make(map[int64]*assessment.Course),
		blocks:         make(map[int64]*assessment.ContentBlock),
		tests:          make(map[int64]*assessment.Test),
		questions:      make(map[int64]*assessment.Question),
		submissions:    make(map[int64]*assessment.Submission),
		events:         make(map[int64]*assessment.DeadlineEvent),
		classStudents:  make(map[int64]map[int64]bool),
		courseStudents: make(map[int64]map[int64]bool),
		legacyClass:    make(map[int64]int64),
	}
	return db, nil
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int64 {
	db.pk++
	return db.pk
}

func containsID(ids []int64, id int64) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
