package catalog

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somesha/core"
)

var (
	courseStatusTag  = "course_status"
	courseStatusText = "must be one of: draft, published, archived"

	questionTypeTag  = "question_type"
	questionTypeText = "must be one of: multiple_choice, true_false, short_answer"

	questionChoicesTag  = "question_choices"
	questionChoicesText = "Choices are required for selectable question types."
)

// InitValidators registers the catalog validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseStatusTag, courseStatusValidation)
	core.RegisterCustomTranslation(validate, translator, courseStatusTag, courseStatusText)

	_ = validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(validate, translator, questionTypeTag, questionTypeText)

	validate.RegisterStructValidation(bankEntryStructValidation, NewBankEntry{})
	core.RegisterCustomTranslation(validate, translator, questionChoicesTag, questionChoicesText)
}

func courseStatusValidation(fl validator.FieldLevel) bool {
	switch CourseStatus(fl.Field().String()) {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	switch QuestionType(fl.Field().String()) {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// bankEntryStructValidation requires choices on multiple choice & true/false entries.
func bankEntryStructValidation(sl validator.StructLevel) {
	entry := sl.Current().Interface().(NewBankEntry)
	if entry.Type.Selectable() && len(entry.Choices) == 0 {
		sl.ReportError(entry.Choices, "choices", "Choices", questionChoicesTag, "")
	}
}

// validateBankEntry re-applies the choices rule on an updated entry.
func validateBankEntry(e BankEntry) error {
	if e.Type.Selectable() && len(e.Choices) == 0 {
		return core.NewFieldError("choices", questionChoicesText)
	}
	return nil
}
