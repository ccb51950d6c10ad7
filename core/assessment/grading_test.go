package assessment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func question(id int64, p Payload, points float64) Question {
	return Question{ID: id, Type: p.Type(), Payload: p, Points: points}
}

func TestGradeQuestion(t *testing.T) {
	tests := []struct {
		name        string
		payload     Payload
		response    string
		wantCorrect bool
		wantManual  bool
	}{
		{name: "binary exact", payload: &BinaryPayload{CorrectAnswer: "O"}, response: `"O"`, wantCorrect: true},
		{name: "binary case-insensitive", payload: &BinaryPayload{CorrectAnswer: "True"}, response: `"  true "`, wantCorrect: true},
		{name: "binary boolean response", payload: &BinaryPayload{CorrectAnswer: "true"}, response: `true`, wantCorrect: true},
		{name: "binary wrong", payload: &BinaryPayload{CorrectAnswer: "O"}, response: `"X"`},
		{name: "binary missing", payload: &BinaryPayload{CorrectAnswer: "O"}, response: ``},
		{name: "multiple choice index", payload: &MultipleChoicePayload{Options: []string{"a", "b"}, CorrectOption: 1}, response: `1`, wantCorrect: true},
		{name: "multiple choice string index", payload: &MultipleChoicePayload{Options: []string{"a", "b"}, CorrectOption: 1}, response: `"1"`, wantCorrect: true},
		{name: "multiple choice wrong", payload: &MultipleChoicePayload{Options: []string{"a", "b"}, CorrectOption: 1}, response: `0`},
		{name: "multiple choice garbage", payload: &MultipleChoicePayload{Options: []string{"a", "b"}, CorrectOption: 0}, response: `{"x":1}`},
		{name: "short answer folded", payload: &ShortAnswerPayload{CorrectAnswer: "Seoul"}, response: `"  SÉOUL "`, wantCorrect: true},
		{name: "short answer acceptable", payload: &ShortAnswerPayload{CorrectAnswer: "Seoul", AcceptableAnswers: []string{"서울"}}, response: `"서울"`, wantCorrect: true},
		{name: "short answer blank", payload: &ShortAnswerPayload{CorrectAnswer: "Seoul"}, response: `"   "`},
		{name: "essay", payload: &EssayPayload{}, response: `"long text"`, wantManual: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp json.RawMessage
			if tt.response != "" {
				resp = json.RawMessage(tt.response)
			}
			out := GradeQuestion(question(1, tt.payload, 5), resp)

			assert.Equal(t, int64(1), out.QuestionID)
			assert.Equal(t, 5.0, out.MaxPoints)
			assert.Equal(t, tt.wantManual, out.RequiresManualGrading)
			if tt.wantManual {
				assert.False(t, out.IsCorrect.Valid)
				assert.False(t, out.AwardedPoints.Valid)
				return
			}
			assert.Equal(t, null.BoolFrom(tt.wantCorrect), out.IsCorrect)
			want := 0.0
			if tt.wantCorrect {
				want = 5
			}
			assert.Equal(t, null.Float64From(want), out.AwardedPoints)
		})
	}
}

func TestGradeAnswers(t *testing.T) {
	questions := []Question{
		question(1, &BinaryPayload{CorrectAnswer: "O"}, 10),
		question(2, &ShortAnswerPayload{CorrectAnswer: "four"}, 20),
		question(3, &MultipleChoicePayload{Options: []string{"a", "b", "c"}, CorrectOption: 2}, 30),
	}
	answers := Answers{
		1: json.RawMessage(`"o"`),
		2: json.RawMessage(`"five"`),
		3: json.RawMessage(`2`),
	}

	outcomes, score, manual := GradeAnswers(questions, answers)
	require.Len(t, outcomes, 3)
	assert.Equal(t, 40.0, score)
	assert.False(t, manual)
	assert.Equal(t, json.RawMessage("null"), GradeQuestion(questions[0], nil).Response)

	questions = append(questions, question(4, &EssayPayload{}, 40))
	_, score, manual = GradeAnswers(questions, answers)
	assert.Equal(t, 40.0, score)
	assert.True(t, manual)
}

func TestMergeOverrides(t *testing.T) {
	outcomes := []Outcome{
		{QuestionID: 1, IsCorrect: null.BoolFrom(false), AwardedPoints: null.Float64From(0), MaxPoints: 10},
		{QuestionID: 2, RequiresManualGrading: true, MaxPoints: 20},
	}

	merged, err := mergeOverrides(outcomes, []OutcomeOverride{
		{QuestionID: 1, IsCorrect: null.BoolFrom(true), AwardedPoints: null.Float64From(10)},
		{QuestionID: 2, AwardedPoints: null.Float64From(15)},
	})
	require.NoError(t, err)
	assert.True(t, merged[0].IsCorrect.Bool)
	assert.False(t, merged[1].RequiresManualGrading)
	assert.Equal(t, 25.0, sumAwarded(merged))
	assert.True(t, outcomes[1].RequiresManualGrading, "stored outcomes are untouched")

	_, err = mergeOverrides(outcomes, []OutcomeOverride{{QuestionID: 9}})
	assert.ErrorIs(t, err, errUnknownQuestion)
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		raw     string
		wantErr bool
	}{
		{name: "ox alias", typ: "OX", raw: `{"correct_answer":"O"}`},
		{name: "binary without answer", typ: "binary", raw: `{}`, wantErr: true},
		{name: "multiple choice", typ: "multiple_choice", raw: `{"options":["a","b"],"correct_option":0}`},
		{name: "multiple choice out of range", typ: "multiple_choice", raw: `{"options":["a","b"],"correct_option":2}`, wantErr: true},
		{name: "multiple choice single option", typ: "multiple_choice", raw: `{"options":["a"],"correct_option":0}`, wantErr: true},
		{name: "short answer", typ: "short_answer", raw: `{"correct_answer":"x","acceptable_answers":["y"]}`},
		{name: "essay empty payload", typ: "essay", raw: ``},
		{name: "essay negative length", typ: "essay", raw: `{"max_length":-1}`, wantErr: true},
		{name: "malformed", typ: "essay", raw: `[`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qt, ok := ParseQuestionType(tt.typ)
			require.True(t, ok)
			p, err := decodePayload(qt, json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, qt, p.Type())
		})
	}

	_, ok := ParseQuestionType("matching")
	assert.False(t, ok)
}

func TestPayload_Public(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		secrets []string
	}{
		{name: "binary", payload: &BinaryPayload{CorrectAnswer: "SECRET", Explanation: "HIDDEN"}, secrets: []string{"SECRET", "HIDDEN"}},
		{name: "multiple choice", payload: &MultipleChoicePayload{Options: []string{"a", "b"}, CorrectOption: 1, Explanation: "HIDDEN"}, secrets: []string{"correct_option", "HIDDEN"}},
		{name: "short answer", payload: &ShortAnswerPayload{CorrectAnswer: "SECRET", AcceptableAnswers: []string{"ALSO"}}, secrets: []string{"SECRET", "ALSO"}},
		{name: "essay", payload: &EssayPayload{MaxLength: 500, ModelAnswer: "SECRET"}, secrets: []string{"SECRET"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.payload.Public())
			require.NoError(t, err)
			for _, s := range tt.secrets {
				assert.NotContains(t, string(data), s)
			}
		})
	}
}
