package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core/assessment"
)

type testRepository struct {
	db *DB
}

var _ assessment.TestRepository = (*testRepository)(nil) // interface compliance check

func NewTestRepository(db *DB) assessment.TestRepository {
	return &testRepository{db: db}
}

func (repo *testRepository) CreateTest(_ context.Context, t assessment.Test) (assessment.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = repo.db.nextPK()
	repo.db.tests[t.ID] = &t
	return t, nil
}

func (repo *testRepository) GetTestByID(_ context.Context, id int64) (assessment.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tests[id]; ok {
		return *t, nil
	}
	return assessment.Test{}, assessment.ErrTestNotFound
}

func (repo *testRepository) QueryTests(_ context.Context, filter assessment.TestFilter) ([]assessment.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tests := make([]assessment.Test, 0)
	for _, t := range repo.db.tests {
		if matchTest(*t, filter) {
			tests = append(tests, *t)
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	return tests, nil
}

func matchTest(t assessment.Test, filter assessment.TestFilter) bool {
	if len(filter.IDs) > 0 && !containsID(filter.IDs, t.ID) {
		return false
	}
	if filter.OwnerID != 0 && t.OwnerID != filter.OwnerID {
		return false
	}
	if len(filter.ClassIDs) > 0 && (!t.ClassID.Valid || !containsID(filter.ClassIDs, t.ClassID.Int64)) {
		return false
	}
	if filter.PublishedOnly && !t.IsPublished {
		return false
	}
	if filter.DueBefore.Valid {
		if t.IsPublished || !t.PublishAt.Valid || t.PublishAt.Time.After(filter.DueBefore.Time) {
			return false
		}
	}
	return true
}

func (repo *testRepository) UpdateTest(_ context.Context, t assessment.Test) (assessment.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.tests[t.ID]
	if !ok {
		return assessment.Test{}, assessment.ErrTestNotFound
	}
	t.IsPublished = orig.IsPublished
	t.CreatedAt = orig.CreatedAt
	repo.db.tests[t.ID] = &t
	return t, nil
}

func (repo *testRepository) SetTestPublished(_ context.Context, id int64, published bool, publishAt null.Time, at time.Time) (assessment.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.tests[id]
	if !ok {
		return assessment.Test{}, assessment.ErrTestNotFound
	}
	t.IsPublished = published
	t.PublishAt = publishAt
	t.UpdatedAt = at
	return *t, nil
}

func (repo *testRepository) DeleteTest(_ context.Context, id int64) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tests[id]; !ok {
		return assessment.ErrTestNotFound
	}
	for qid, q := range repo.db.questions {
		if q.TestID == id {
			delete(repo.db.questions, qid)
		}
	}
	for sid, s := range repo.db.submissions {
		if s.TestID == id {
			delete(repo.db.submissions, sid)
		}
	}
	for eid, e := range repo.db.events {
		if e.TestID == id {
			delete(repo.db.events, eid)
		}
	}
	for bid, b := range repo.db.blocks {
		if linked, ok := b.LinkedTestID(); ok && linked == id {
			delete(repo.db.blocks, bid)
		}
	}
	delete(repo.db.tests, id)
	return nil
}
