package inmemdb

import (
	"context"
	"sort"

	"github.com/bangkihwa/studylink/core/assessment"
)

type questionRepository struct {
	db *DB
}

var _ assessment.QuestionRepository = (*questionRepository)(nil) // interface compliance check

func NewQuestionRepository(db *DB) assessment.QuestionRepository {
	return &questionRepository{db: db}
}

func (repo *questionRepository) CreateQuestion(_ context.Context, q assessment.Question) (assessment.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tests[q.TestID]; !ok {
		return assessment.Question{}, assessment.ErrTestNotFound
	}
	q.ID = repo.db.nextPK()
	repo.db.questions[q.ID] = &q
	return q, nil
}

func (repo *questionRepository) GetQuestionByID(_ context.Context, id int64) (assessment.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return *q, nil
	}
	return assessment.Question{}, assessment.ErrQuestionNotFound
}

func (repo *questionRepository) QueryQuestions(_ context.Context, testID int64) ([]assessment.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	questions := make([]assessment.Question, 0)
	for _, q := range repo.db.questions {
		if q.TestID == testID {
			questions = append(questions, *q)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].OrderIndex != questions[j].OrderIndex {
			return questions[i].OrderIndex < questions[j].OrderIndex
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

func (repo *questionRepository) UpdateQuestion(_ context.Context, q assessment.Question) (assessment.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.questions[q.ID]
	if !ok {
		return assessment.Question{}, assessment.ErrQuestionNotFound
	}
	q.TestID = orig.TestID
	repo.db.questions[q.ID] = &q
	return q, nil
}

func (repo *questionRepository) DeleteQuestion(_ context.Context, id int64) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.questions[id]; !ok {
		return assessment.ErrQuestionNotFound
	}
	delete(repo.db.questions, id)
	return nil
}

func (repo *questionRepository) ReorderQuestions(_ context.Context, testID int64, ids []int64) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		if q, ok := repo.db.questions[id]; !ok || q.TestID != testID {
			return assessment.ErrQuestionNotFound
		}
	}
	for i, id := range ids {
		repo.db.questions[id].OrderIndex = i
	}
	return nil
}
