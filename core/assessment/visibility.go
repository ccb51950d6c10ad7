package assessment

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/bangkihwa/studylink/core"
)

const (
	ProgressComplete = "complete"
	ProgressPending  = "pending"
)

// SubmissionStatus is a student's own submission as shown next to an available test.
// Score stays hidden until the result is published.
type SubmissionStatus struct {
	ID          int64           `json:"id"`
	State       SubmissionState `json:"state"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Score       null.Float64    `json:"score"`
}

// AvailableTest is a published test a student may take, with the course block
// that surfaces it when there is one.
type AvailableTest struct {
	Test
	CourseID    null.Int64        `json:"course_id"`
	CourseTitle null.String       `json:"course_title"`
	BlockID     null.Int64        `json:"block_id"`
	Submission  *SubmissionStatus `json:"submission"`
}

// BlockProgress is a student's completion of one test block of a course.
type BlockProgress struct {
	BlockID    int64  `json:"block_id"`
	Title      string `json:"title"`
	TestID     int64  `json:"test_id"`
	OrderIndex int    `json:"order_index"`
	IsRequired bool   `json:"is_required"`
	Status     string `json:"status"`
}

// studentScope is everything a student reaches: the classes of the class path
// and the published courses of the course path.
type studentScope struct {
	classIDs []int64
	courses  []Course
}

func (svc *Service) resolveScope(ctx context.Context, studentID int64) (studentScope, error) {
	classIDs, err := svc.members.StudentClassIDs(ctx, studentID)
	if err != nil {
		return studentScope{}, errors.Wrap(err, "resolving student classes")
	}
	directIDs, err := svc.members.StudentCourseIDs(ctx, studentID)
	if err != nil {
		return studentScope{}, errors.Wrap(err, "resolving student courses")
	}

	var direct, byClass []Course
	if len(directIDs) > 0 {
		if direct, err = svc.courses.QueryCourses(ctx, CourseFilter{IDs: directIDs}); err != nil {
			return studentScope{}, errors.Wrap(err, "querying assigned courses")
		}
	}
	if len(classIDs) > 0 {
		if byClass, err = svc.courses.QueryCourses(ctx, CourseFilter{ClassIDs: classIDs}); err != nil {
			return studentScope{}, errors.Wrap(err, "querying class courses")
		}
	}

	var directClassIDs []int64
	for _, c := range direct {
		if c.ClassID.Valid {
			directClassIDs = append(directClassIDs, c.ClassID.Int64)
		}
	}
	scope := studentScope{classIDs: core.UniqueInt64s(classIDs, directClassIDs)}

	seen := make(map[int64]bool)
	for _, c := range append(direct, byClass...) {
		if c.IsPublished && !seen[c.ID] {
			seen[c.ID] = true
			scope.courses = append(scope.courses, c)
		}
	}
	sort.Slice(scope.courses, func(i, j int) bool { return scope.courses[i].ID < scope.courses[j].ID })
	return scope, nil
}

func (s studentScope) courseIDs() []int64 {
	ids := make([]int64, len(s.courses))
	for i, c := range s.courses {
		ids[i] = c.ID
	}
	return ids
}

// IsAvailable reports whether the student may take the test.
func (svc *Service) IsAvailable(ctx context.Context, testID, studentID int64) (bool, error) {
	t, err := svc.tests.GetTestByID(ctx, testID)
	if err != nil {
		return false, errors.Wrap(err, "getting test")
	}
	if !t.IsPublished {
		return false, nil
	}

	scope, err := svc.resolveScope(ctx, studentID)
	if err != nil {
		return false, err
	}
	if t.ClassID.Valid && core.ContainsInt64(scope.classIDs, t.ClassID.Int64) {
		return true, nil
	}
	if len(scope.courses) == 0 {
		return false, nil
	}
	blocks, err := svc.courses.QueryContentBlocks(ctx, BlockFilter{
		CourseIDs: scope.courseIDs(),
		Kind:      BlockKindTest,
		TestIDs:   []int64{testID},
	})
	if err != nil {
		return false, errors.Wrap(err, "querying content blocks")
	}
	return len(blocks) > 0, nil
}

// ListAvailable returns the published tests the student reaches through a course or a class.
func (svc *Service) ListAvailable(ctx context.Context, studentID int64) ([]AvailableTest, error) {
	scope, err := svc.resolveScope(ctx, studentID)
	if err != nil {
		return nil, err
	}

	entries := make(map[int64]*AvailableTest)

	// course path
	if len(scope.courses) > 0 {
		blocks, err := svc.courses.QueryContentBlocks(ctx, BlockFilter{CourseIDs: scope.courseIDs(), Kind: BlockKindTest})
		if err != nil {
			return nil, errors.Wrap(err, "querying content blocks")
		}
		sort.SliceStable(blocks, func(i, j int) bool {
			if blocks[i].CourseID != blocks[j].CourseID {
				return blocks[i].CourseID < blocks[j].CourseID
			}
			return blocks[i].OrderIndex < blocks[j].OrderIndex
		})

		titles := make(map[int64]string, len(scope.courses))
		for _, c := range scope.courses {
			titles[c.ID] = c.Title
		}
		var testIDs []int64
		linked := make(map[int64]ContentBlock)
		for _, b := range blocks {
			id, ok := b.LinkedTestID()
			if !ok {
				continue
			}
			if _, dup := linked[id]; !dup {
				linked[id] = b
				testIDs = append(testIDs, id)
			}
		}
		if len(testIDs) > 0 {
			tests, err := svc.tests.QueryTests(ctx, TestFilter{IDs: testIDs, PublishedOnly: true})
			if err != nil {
				return nil, errors.Wrap(err, "querying course tests")
			}
			for _, t := range tests {
				b := linked[t.ID]
				entries[t.ID] = &AvailableTest{
					Test:        t,
					CourseID:    null.Int64From(b.CourseID),
					CourseTitle: null.StringFrom(titles[b.CourseID]),
					BlockID:     null.Int64From(b.ID),
				}
			}
		}
	}

	// class path
	if len(scope.classIDs) > 0 {
		tests, err := svc.tests.QueryTests(ctx, TestFilter{ClassIDs: scope.classIDs, PublishedOnly: true})
		if err != nil {
			return nil, errors.Wrap(err, "querying class tests")
		}
		for _, t := range tests {
			if _, ok := entries[t.ID]; !ok {
				entries[t.ID] = &AvailableTest{Test: t}
			}
		}
	}

	available := make([]AvailableTest, 0, len(entries))
	if len(entries) == 0 {
		return available, nil
	}

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	subs, err := svc.submissions.QuerySubmissions(ctx, SubmissionFilter{TestIDs: ids, StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	for _, sub := range subs {
		e, ok := entries[sub.TestID]
		if !ok {
			continue
		}
		e.Submission = &SubmissionStatus{ID: sub.ID, State: sub.State(), SubmittedAt: sub.SubmittedAt}
		if sub.IsPublished {
			e.Submission.Score = sub.Score
		}
	}

	for _, e := range entries {
		available = append(available, *e)
	}
	sort.Slice(available, func(i, j int) bool {
		a, b := available[i].DueDate, available[j].DueDate
		if a != b {
			if a.IsZero() || b.IsZero() {
				return b.IsZero()
			}
			return a.Before(b)
		}
		return available[i].ID < available[j].ID
	})
	return available, nil
}

// AvailableStudents returns the ids of every student the test is available to once published.
func (svc *Service) AvailableStudents(ctx context.Context, testID int64) ([]int64, error) {
	t, err := svc.tests.GetTestByID(ctx, testID)
	if err != nil {
		return nil, errors.Wrap(err, "getting test")
	}

	var groups [][]int64
	addCourse := func(c Course) error {
		ids, err := svc.members.CourseStudentIDs(ctx, c.ID)
		if err != nil {
			return errors.Wrapf(err, "resolving students of course %d", c.ID)
		}
		groups = append(groups, ids)
		return nil
	}
	addClass := func(classID int64) error {
		ids, err := svc.members.ClassStudentIDs(ctx, classID)
		if err != nil {
			return errors.Wrapf(err, "resolving students of class %d", classID)
		}
		groups = append(groups, ids)
		return nil
	}

	if t.ClassID.Valid {
		if err := addClass(t.ClassID.Int64); err != nil {
			return nil, err
		}
		courses, err := svc.courses.QueryCourses(ctx, CourseFilter{ClassIDs: []int64{t.ClassID.Int64}})
		if err != nil {
			return nil, errors.Wrap(err, "querying class courses")
		}
		for _, c := range courses {
			if err := addCourse(c); err != nil {
				return nil, err
			}
		}
	}

	blocks, err := svc.courses.QueryContentBlocks(ctx, BlockFilter{Kind: BlockKindTest, TestIDs: []int64{t.ID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying linking blocks")
	}
	if len(blocks) > 0 {
		courseIDs := make([]int64, len(blocks))
		for i, b := range blocks {
			courseIDs[i] = b.CourseID
		}
		courses, err := svc.courses.QueryCourses(ctx, CourseFilter{IDs: core.UniqueInt64s(courseIDs)})
		if err != nil {
			return nil, errors.Wrap(err, "querying linking courses")
		}
		for _, c := range courses {
			if !c.IsPublished {
				continue
			}
			if err := addCourse(c); err != nil {
				return nil, err
			}
			if c.ClassID.Valid {
				if err := addClass(c.ClassID.Int64); err != nil {
					return nil, err
				}
			}
		}
	}

	ids := core.UniqueInt64s(groups...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CourseProgress reports, per test block of the course, whether the student submitted the linked test.
func (svc *Service) CourseProgress(ctx context.Context, studentID, courseID int64) ([]BlockProgress, error) {
	if _, err := svc.courses.GetCourse(ctx, courseID); err != nil {
		return nil, errors.Wrap(err, "getting course")
	}
	blocks, err := svc.courses.QueryContentBlocks(ctx, BlockFilter{CourseIDs: []int64{courseID}, Kind: BlockKindTest})
	if err != nil {
		return nil, errors.Wrap(err, "querying content blocks")
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].OrderIndex < blocks[j].OrderIndex })

	progress := make([]BlockProgress, 0, len(blocks))
	var testIDs []int64
	for _, b := range blocks {
		id, ok := b.LinkedTestID()
		if !ok {
			continue
		}
		testIDs = append(testIDs, id)
		progress = append(progress, BlockProgress{
			BlockID:    b.ID,
			Title:      b.Title,
			TestID:     id,
			OrderIndex: b.OrderIndex,
			IsRequired: b.IsRequired,
			Status:     ProgressPending,
		})
	}
	if len(testIDs) == 0 {
		return progress, nil
	}

	subs, err := svc.submissions.QuerySubmissions(ctx, SubmissionFilter{TestIDs: testIDs, StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	submitted := make(map[int64]bool, len(subs))
	for _, sub := range subs {
		submitted[sub.TestID] = true
	}
	for i := range progress {
		if submitted[progress[i].TestID] {
			progress[i].Status = ProgressComplete
		}
	}
	return progress, nil
}
