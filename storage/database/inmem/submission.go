package inmemdb

import (
	"context"
	"sort"

	"github.com/bangkihwa/studylink/core/assessment"
)

type submissionRepository struct {
	db *DB
}

var _ assessment.SubmissionRepository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) assessment.SubmissionRepository {
	return &submissionRepository{db: db}
}

// clone detaches the answer maps from the caller's copy.
func clone(s assessment.Submission) assessment.Submission {
	if s.RawAnswers != nil {
		raw := make(assessment.Answers, len(s.RawAnswers))
		for id, ans := range s.RawAnswers {
			raw[id] = ans
		}
		s.RawAnswers = raw
	}
	if s.GradedAnswers != nil {
		s.GradedAnswers = append([]assessment.Outcome(nil), s.GradedAnswers...)
	}
	return s
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, s assessment.Submission) (assessment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.submissions {
		if existing.TestID == s.TestID && existing.StudentID == s.StudentID {
			return assessment.Submission{}, assessment.ErrSubmissionDup
		}
	}
	s = clone(s)
	s.ID = repo.db.nextPK()
	repo.db.submissions[s.ID] = &s
	return clone(s), nil
}

func (repo *submissionRepository) GetSubmissionByID(_ context.Context, id int64) (assessment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return clone(*s), nil
	}
	return assessment.Submission{}, assessment.ErrSubmissionNotFound
}

func (repo *submissionRepository) GetSubmission(_ context.Context, testID, studentID int64) (assessment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.submissions {
		if s.TestID == testID && s.StudentID == studentID {
			return clone(*s), nil
		}
	}
	return assessment.Submission{}, assessment.ErrSubmissionNotFound
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter assessment.SubmissionFilter) ([]assessment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]assessment.Submission, 0)
	for _, s := range repo.db.submissions {
		if len(filter.TestIDs) > 0 && !containsID(filter.TestIDs, s.TestID) {
			continue
		}
		if filter.StudentID != 0 && s.StudentID != filter.StudentID {
			continue
		}
		subs = append(subs, clone(*s))
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(_ context.Context, s assessment.Submission) (assessment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.submissions[s.ID]
	if !ok {
		return assessment.Submission{}, assessment.ErrSubmissionNotFound
	}
	s = clone(s)
	s.TestID = orig.TestID
	s.StudentID = orig.StudentID
	s.RawAnswers = orig.RawAnswers
	s.SubmittedAt = orig.SubmittedAt
	repo.db.submissions[s.ID] = &s
	return clone(s), nil
}
