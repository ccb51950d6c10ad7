package assessment

import (
	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
)

var (
	ErrTestNotFound       = core.NewError(core.KindNotFound, "test not found")
	ErrQuestionNotFound   = core.NewError(core.KindNotFound, "question not found")
	ErrSubmissionNotFound = core.NewError(core.KindNotFound, "submission not found")
	ErrClassNotFound      = core.NewError(core.KindNotFound, "class not found")
	ErrCourseNotFound     = core.NewError(core.KindNotFound, "course not found")
	ErrEventNotFound      = core.NewError(core.KindNotFound, "deadline event not found")

	ErrForbidden      = core.NewError(core.KindForbidden, "insufficient permissions for this test")
	ErrStudentsOnly   = core.NewError(core.KindForbidden, "only students can take tests")
	ErrClassNotOwned  = core.NewError(core.KindForbidden, "the class is not taught by the test owner")
	ErrOtherStudent   = core.NewError(core.KindForbidden, "students can only view their own results")
	ErrSubmissionDup  = core.NewError(core.KindConflict, "test already submitted")
	ErrNotAvailable   = core.NewError(core.KindNotAvailable, "test is not available to this student")
	ErrNotPublished   = core.NewError(core.KindNotPublished, "test is not published")
	ErrResultPending  = core.NewError(core.KindNotPublished, "result is not published yet")
	ErrDeadlinePassed = core.NewError(core.KindDeadlinePassed, "the submission deadline has passed")

	// validation
	errTitleRequired        = errors.New("title is required")
	errQuestionTextRequired = errors.New("question text is required")
	errCourseOtherClass     = errors.New("course does not belong to the test's class")
	errReorderMismatch      = errors.New("question ids must match the test's questions exactly")
	errUnknownQuestion      = errors.New("question does not belong to this test")
	errNotGraded            = errors.New("submission must be graded before it is published")
	errInvalidDateRange     = errors.New("invalid date range")
	errDateRangeTooLarge    = errors.New("date range is too large")
	errInvalidPublishAt     = errors.New("publish time must be an RFC3339 timestamp")
)

func fieldError(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}
