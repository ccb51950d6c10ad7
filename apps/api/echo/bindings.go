package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/assessment"
)

// idParam parses a positive int64 path param; anything else is a 404.
func idParam(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// int64Query parses an optional int64 query param; a missing one is 0.
func int64Query(ctx echo.Context, name string) (int64, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be an integer"})
	}
	return n, nil
}

// DateRange binds the `from` and `to` query params (YYYY-MM-DD).
type DateRange struct {
	From core.Date
	To   core.Date
}

func (dr *DateRange) Bind(ctx echo.Context) error {
	var fldErrs []core.FieldError
	for _, p := range []struct {
		name string
		dest *core.Date
	}{{"from", &dr.From}, {"to", &dr.To}} {
		d, err := core.ParseDate(ctx.QueryParam(p.name))
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: p.name, Error: "must be a YYYY-MM-DD date"})
			continue
		}
		*p.dest = d
	}
	if fldErrs != nil {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

// PublishRequest toggles the publication of a test or a result.
type PublishRequest struct {
	Published *bool `json:"published" validate:"required"`
}

func (pr *PublishRequest) Validate() error {
	return core.Validate.Struct(pr)
}

// ReorderRequest lists every question id of a test in its new order.
type ReorderRequest struct {
	QuestionIDs []int64 `json:"question_ids" validate:"required,min=1"`
}

func (rr *ReorderRequest) Validate() error {
	return core.Validate.Struct(rr)
}

// SubmitRequest carries a student's answers keyed by question id.
type SubmitRequest struct {
	Answers assessment.Answers `json:"answers"`
}
