package assessment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const linkedBlockTitlePrefix = "Test · "

// checkCourse loads an explicitly chosen course, which must belong to the test's class.
func (svc *Service) checkCourse(ctx context.Context, classID null.Int64, courseID int64) (Course, error) {
	course, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, errors.Wrap(err, "getting course")
	}
	if !classID.Valid || !course.ClassID.Valid || course.ClassID.Int64 != classID.Int64 {
		return Course{}, fieldError(errCourseOtherClass, "course_id")
	}
	return course, nil
}

// pickCourse chooses the course a test is linked into. Without an explicit course it prefers the
// single class course owned by the test owner, then the class's only course. ok is false when
// the choice is ambiguous or there is nothing to choose from.
func (svc *Service) pickCourse(ctx context.Context, t Test, courseID int64) (course Course, ok bool, err error) {
	if courseID != 0 {
		course, err = svc.checkCourse(ctx, t.ClassID, courseID)
		return course, err == nil, err
	}
	if !t.ClassID.Valid {
		return Course{}, false, nil
	}

	courses, err := svc.courses.QueryCourses(ctx, CourseFilter{ClassIDs: []int64{t.ClassID.Int64}})
	if err != nil {
		return Course{}, false, errors.Wrap(err, "querying class courses")
	}
	var owned []Course
	for _, c := range courses {
		if c.TeacherID == t.OwnerID {
			owned = append(owned, c)
		}
	}
	switch {
	case len(owned) == 1:
		return owned[0], true, nil
	case len(courses) == 1:
		return courses[0], true, nil
	case len(courses) > 1:
		svc.logger.Info(fmt.Sprintf("test %d not linked: class %d has %d courses, %d owned by the test owner",
			t.ID, t.ClassID.Int64, len(courses), len(owned)))
	}
	return Course{}, false, nil
}

// linkCourse appends a required test block to the chosen course unless one already references t.
func (svc *Service) linkCourse(ctx context.Context, t Test, courseID int64) error {
	course, ok, err := svc.pickCourse(ctx, t, courseID)
	if err != nil || !ok {
		return err
	}

	blocks, err := svc.courses.QueryContentBlocks(ctx, BlockFilter{CourseIDs: []int64{course.ID}})
	if err != nil {
		return errors.Wrap(err, "querying content blocks")
	}
	next := 0
	for _, b := range blocks {
		if id, ok := b.LinkedTestID(); ok && id == t.ID {
			return nil
		}
		if b.OrderIndex >= next {
			next = b.OrderIndex + 1
		}
	}

	content, err := json.Marshal(testBlockContent{TestID: t.ID})
	if err != nil {
		return errors.Wrap(err, "encoding block content")
	}
	block := ContentBlock{
		CourseID:   course.ID,
		Kind:       BlockKindTest,
		Title:      linkedBlockTitlePrefix + t.Title,
		Content:    content,
		OrderIndex: next,
		IsRequired: true,
	}
	if _, err := svc.courses.CreateContentBlock(ctx, block); err != nil {
		return errors.Wrap(err, "creating content block")
	}
	return nil
}
