package assessment

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/volatiletech/null/v8"
	"golang.org/x/text/unicode/norm"
)

// Outcome is the structured, per-question result of grading a submission.
type Outcome struct {
	QuestionID            int64           `json:"question_id"`
	Response              json.RawMessage `json:"response"`
	IsCorrect             null.Bool       `json:"is_correct"`
	AwardedPoints         null.Float64    `json:"awarded_points"`
	MaxPoints             float64         `json:"max_points"`
	RequiresManualGrading bool            `json:"requires_manual_grading"`
}

// OutcomeOverride is a teacher's correction of one question's outcome.
type OutcomeOverride struct {
	QuestionID    int64        `json:"question_id" validate:"required"`
	IsCorrect     null.Bool    `json:"is_correct"`
	AwardedPoints null.Float64 `json:"awarded_points"`
}

// GradeQuestion grades one response. Binary, multiple choice and short answer questions are
// all-or-nothing; essays are left for manual grading with no awarded points.
func GradeQuestion(q Question, response json.RawMessage) Outcome {
	out := Outcome{
		QuestionID: q.ID,
		Response:   response,
		MaxPoints:  q.Points,
	}
	if out.Response == nil {
		out.Response = json.RawMessage("null")
	}
	if q.Payload == nil {
		out.IsCorrect = null.BoolFrom(false)
		out.AwardedPoints = null.Float64From(0)
		return out
	}

	correct, manual := q.Payload.grade(response)
	if manual {
		out.RequiresManualGrading = true
		return out
	}
	out.IsCorrect = null.BoolFrom(correct)
	if correct {
		out.AwardedPoints = null.Float64From(q.Points)
	} else {
		out.AwardedPoints = null.Float64From(0)
	}
	return out
}

// GradeAnswers grades every question of a test against the student's answers.
// needsManual is true when at least one question requires a human.
func GradeAnswers(questions []Question, answers Answers) (outcomes []Outcome, score float64, needsManual bool) {
	outcomes = make([]Outcome, 0, len(questions))
	for _, q := range questions {
		out := GradeQuestion(q, answers[q.ID])
		if out.RequiresManualGrading {
			needsManual = true
		}
		score += out.AwardedPoints.Float64
		outcomes = append(outcomes, out)
	}
	return outcomes, score, needsManual
}

// mergeOverrides applies teacher corrections on top of stored outcomes.
// Setting awarded points settles a manual question.
func mergeOverrides(outcomes []Outcome, overrides []OutcomeOverride) ([]Outcome, error) {
	merged := make([]Outcome, len(outcomes))
	copy(merged, outcomes)

	idx := make(map[int64]int, len(merged))
	for i, out := range merged {
		idx[out.QuestionID] = i
	}
	for _, ovr := range overrides {
		i, ok := idx[ovr.QuestionID]
		if !ok {
			return nil, fieldError(errUnknownQuestion, "outcomes")
		}
		if ovr.IsCorrect.Valid {
			merged[i].IsCorrect = ovr.IsCorrect
		}
		if ovr.AwardedPoints.Valid {
			merged[i].AwardedPoints = ovr.AwardedPoints
			merged[i].RequiresManualGrading = false
		}
	}
	return merged, nil
}

// sumAwarded adds up awarded points; ungraded questions count as zero.
func sumAwarded(outcomes []Outcome) float64 {
	var total float64
	for _, out := range outcomes {
		total += out.AwardedPoints.Float64
	}
	return total
}

// foldAnswer trims, lower-cases and strips diacritics so "  Séoul " matches "seoul".
func foldAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) { // mark nonspacing
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
