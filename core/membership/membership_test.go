package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	classes  map[int64][]int64 // studentID -> classIDs
	courses  map[int64][]int64 // studentID -> courseIDs
	roster   map[int64][]int64 // classID -> studentIDs
	enrolled map[int64][]int64 // courseID -> studentIDs
	err      error
}

func (b fakeBackend) StudentClassIDs(_ context.Context, id int64) ([]int64, error) {
	return b.classes[id], b.err
}

func (b fakeBackend) StudentCourseIDs(_ context.Context, id int64) ([]int64, error) {
	return b.courses[id], b.err
}

func (b fakeBackend) ClassStudentIDs(_ context.Context, id int64) ([]int64, error) {
	return b.roster[id], b.err
}

func (b fakeBackend) CourseStudentIDs(_ context.Context, id int64) ([]int64, error) {
	return b.enrolled[id], b.err
}

func TestResolver_union(t *testing.T) {
	ctx := context.Background()
	roster := fakeBackend{
		classes:  map[int64][]int64{1: {5, 7}},
		courses:  map[int64][]int64{1: {20}},
		roster:   map[int64][]int64{5: {1, 2}},
		enrolled: map[int64][]int64{20: {1}},
	}
	legacy := fakeBackend{
		classes: map[int64][]int64{1: {5}, 3: {5}},
		roster:  map[int64][]int64{5: {3, 2}},
	}
	r := NewResolver(roster, legacy)

	tests := []struct {
		name  string
		query func() ([]int64, error)
		want  []int64
	}{
		{
			name:  "student classes are deduplicated and sorted",
			query: func() ([]int64, error) { return r.StudentClassIDs(ctx, 1) },
			want:  []int64{5, 7},
		},
		{
			name:  "legacy-only membership is found",
			query: func() ([]int64, error) { return r.StudentClassIDs(ctx, 3) },
			want:  []int64{5},
		},
		{
			name:  "class students from both representations",
			query: func() ([]int64, error) { return r.ClassStudentIDs(ctx, 5) },
			want:  []int64{1, 2, 3},
		},
		{
			name:  "courses only from the roster",
			query: func() ([]int64, error) { return r.StudentCourseIDs(ctx, 1) },
			want:  []int64{20},
		},
		{
			name:  "unknown student",
			query: func() ([]int64, error) { return r.StudentClassIDs(ctx, 99) },
			want:  []int64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_backendError(t *testing.T) {
	boom := errors.New("boom")
	r := NewResolver(fakeBackend{}, fakeBackend{err: boom})

	_, err := r.StudentClassIDs(context.Background(), 1)
	assert.True(t, errors.Is(err, boom))
}

func TestNewResolver_noBackends(t *testing.T) {
	assert.Panics(t, func() { NewResolver() })
}
