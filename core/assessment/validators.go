package assessment

import (
	"github.com/go-playground/validator/v10"

	"github.com/bangkihwa/studylink/core"
)

var (
	questionTypeTag  = "qtype"
	questionTypeText = "{0} must be one of binary, multiple_choice, short_answer or essay"
)

func init() {
	// register validators
	_ = core.Validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, questionTypeTag, questionTypeText)
}

// questionTypeValidation checks that a question type is known; "ox" is accepted for binary.
func questionTypeValidation(fl validator.FieldLevel) bool {
	_, ok := ParseQuestionType(fl.Field().String())
	return ok
}
