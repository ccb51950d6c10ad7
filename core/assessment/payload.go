package assessment

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type QuestionType string

const (
	TypeBinary         QuestionType = "binary"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeEssay          QuestionType = "essay"

	typeBinaryAlias = "ox"
)

var QuestionTypes = []QuestionType{TypeBinary, TypeMultipleChoice, TypeShortAnswer, TypeEssay}

// ParseQuestionType accepts the canonical names plus "ox" for binary questions.
func ParseQuestionType(s string) (QuestionType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == typeBinaryAlias {
		return TypeBinary, true
	}
	for _, t := range QuestionTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Payload is the type-specific part of a Question.
// Every variant declares its public view in Public; fields missing from the view never reach students.
type Payload interface {
	Type() QuestionType
	Validate() error
	// Public returns the attempt-safe view of the payload.
	Public() interface{}
	// grade reports whether the response is correct, or that it needs a human.
	grade(response json.RawMessage) (correct, manual bool)
}

var (
	_ Payload = (*BinaryPayload)(nil)
	_ Payload = (*MultipleChoicePayload)(nil)
	_ Payload = (*ShortAnswerPayload)(nil)
	_ Payload = (*EssayPayload)(nil)
)

// DecodePayload decodes raw into the variant of t.
func DecodePayload(t QuestionType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case TypeBinary:
		p = new(BinaryPayload)
	case TypeMultipleChoice:
		p = new(MultipleChoicePayload)
	case TypeShortAnswer:
		p = new(ShortAnswerPayload)
	case TypeEssay:
		p = new(EssayPayload)
	default:
		return nil, errors.Errorf("unknown question type %q", t)
	}

	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, errors.Wrapf(err, "decoding %s payload", t)
	}
	return p, nil
}

// Binary (O/X, true/false)

type BinaryPayload struct {
	CorrectAnswer Scalar `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

type BinaryView struct{}

func (p *BinaryPayload) Type() QuestionType  { return TypeBinary }
func (p *BinaryPayload) Public() interface{} { return BinaryView{} }

func (p *BinaryPayload) Validate() error {
	if strings.TrimSpace(string(p.CorrectAnswer)) == "" {
		return errors.New("correct_answer is required")
	}
	return nil
}

func (p *BinaryPayload) grade(response json.RawMessage) (bool, bool) {
	resp, ok := scalarOf(response)
	if !ok {
		return false, false
	}
	correct := strings.TrimSpace(string(p.CorrectAnswer))
	return correct != "" && strings.EqualFold(strings.TrimSpace(string(resp)), correct), false
}

// Multiple choice

type MultipleChoicePayload struct {
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"` // 0-based index into Options
	Explanation   string   `json:"explanation,omitempty"`
}

type MultipleChoiceView struct {
	Options []string `json:"options"`
}

func (p *MultipleChoicePayload) Type() QuestionType { return TypeMultipleChoice }

func (p *MultipleChoicePayload) Public() interface{} {
	opts := make([]string, len(p.Options))
	copy(opts, p.Options)
	return MultipleChoiceView{Options: opts}
}

func (p *MultipleChoicePayload) Validate() error {
	if len(p.Options) < 2 {
		return errors.New("at least 2 options are required")
	}
	for i, opt := range p.Options {
		if strings.TrimSpace(opt) == "" {
			return errors.Errorf("option %d is empty", i)
		}
	}
	if p.CorrectOption < 0 || p.CorrectOption >= len(p.Options) {
		return errors.New("correct_option is out of range")
	}
	return nil
}

func (p *MultipleChoicePayload) grade(response json.RawMessage) (bool, bool) {
	resp, ok := scalarOf(response)
	if !ok {
		return false, false
	}
	chosen, err := strconv.ParseFloat(strings.TrimSpace(string(resp)), 64)
	if err != nil {
		return false, false
	}
	return chosen == float64(p.CorrectOption), false
}

// Short answer

type ShortAnswerPayload struct {
	CorrectAnswer     string   `json:"correct_answer"`
	AcceptableAnswers []string `json:"acceptable_answers,omitempty"`
}

type ShortAnswerView struct{}

func (p *ShortAnswerPayload) Type() QuestionType  { return TypeShortAnswer }
func (p *ShortAnswerPayload) Public() interface{} { return ShortAnswerView{} }

func (p *ShortAnswerPayload) Validate() error {
	if strings.TrimSpace(p.CorrectAnswer) == "" {
		return errors.New("correct_answer is required")
	}
	return nil
}

func (p *ShortAnswerPayload) grade(response json.RawMessage) (bool, bool) {
	resp, ok := scalarOf(response)
	if !ok {
		return false, false
	}
	given := foldAnswer(string(resp))
	if given == "" {
		return false, false
	}
	for _, accepted := range append([]string{p.CorrectAnswer}, p.AcceptableAnswers...) {
		if a := foldAnswer(accepted); a != "" && a == given {
			return true, false
		}
	}
	return false, false
}

// Essay

type EssayPayload struct {
	MaxLength   int    `json:"max_length,omitempty"`
	ModelAnswer string `json:"model_answer,omitempty"`
}

type EssayView struct {
	MaxLength int `json:"max_length,omitempty"`
}

func (p *EssayPayload) Type() QuestionType  { return TypeEssay }
func (p *EssayPayload) Public() interface{} { return EssayView{MaxLength: p.MaxLength} }

func (p *EssayPayload) Validate() error {
	if p.MaxLength < 0 {
		return errors.New("max_length cannot be negative")
	}
	return nil
}

func (p *EssayPayload) grade(json.RawMessage) (bool, bool) {
	return false, true
}

// Scalar is a JSON string, boolean or number kept in its textual form.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = Scalar(val)
	case bool:
		*s = Scalar(strconv.FormatBool(val))
	case json.Number:
		*s = Scalar(val.String())
	default:
		return errors.New("expected a string, boolean or number")
	}
	return nil
}

// scalarOf decodes a raw response; ok is false when it is missing or not a scalar.
func scalarOf(raw json.RawMessage) (Scalar, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var s Scalar
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
