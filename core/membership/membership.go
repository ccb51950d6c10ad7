// Package membership answers which classes and courses a student belongs to.
//
// Memberships live in two representations while the data migration is in progress:
// the class_students/course_students join tables and the legacy per-student class field.
// Each representation is a Backend; Resolver queries all of them and unions the answers,
// so callers never special-case either one.
package membership

import (
	"context"
	"sort"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

// Backend resolves memberships from one representation.
// A backend that cannot answer a question returns an empty list.
type Backend interface {
	StudentClassIDs(ctx context.Context, studentID int64) ([]int64, error)
	StudentCourseIDs(ctx context.Context, studentID int64) ([]int64, error)
	ClassStudentIDs(ctx context.Context, classID int64) ([]int64, error)
	CourseStudentIDs(ctx context.Context, courseID int64) ([]int64, error)
}

// Resolver is a read-only membership oracle over several backends.
type Resolver struct {
	backends []Backend
}

var _ Backend = (*Resolver)(nil)

// NewResolver panics when called without backends.
func NewResolver(backends ...Backend) *Resolver {
	vala.BeginValidation().Validate(
		vala.GreaterThan(len(backends), 0, "len(backends)"),
	).CheckAndPanic()

	return &Resolver{backends: backends}
}

func (r *Resolver) StudentClassIDs(ctx context.Context, studentID int64) ([]int64, error) {
	return r.union(func(b Backend) ([]int64, error) { return b.StudentClassIDs(ctx, studentID) })
}

func (r *Resolver) StudentCourseIDs(ctx context.Context, studentID int64) ([]int64, error) {
	return r.union(func(b Backend) ([]int64, error) { return b.StudentCourseIDs(ctx, studentID) })
}

func (r *Resolver) ClassStudentIDs(ctx context.Context, classID int64) ([]int64, error) {
	return r.union(func(b Backend) ([]int64, error) { return b.ClassStudentIDs(ctx, classID) })
}

func (r *Resolver) CourseStudentIDs(ctx context.Context, courseID int64) ([]int64, error) {
	return r.union(func(b Backend) ([]int64, error) { return b.CourseStudentIDs(ctx, courseID) })
}

// union returns the sorted, de-duplicated ids of all backends.
// Any backend error fails the whole lookup.
func (r *Resolver) union(query func(Backend) ([]int64, error)) ([]int64, error) {
	seen := make(map[int64]struct{})
	for i, b := range r.backends {
		ids, err := query(b)
		if err != nil {
			return nil, errors.Wrapf(err, "querying membership backend %d", i)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
