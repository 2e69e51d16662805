package integration

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somesha/core"
)

var (
	integrationTypeTag  = "integration_type"
	integrationTypeText = "must be one of: zoom, google_classroom, microsoft_teams, canvas, blackboard"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(integrationTypeTag, func(fl validator.FieldLevel) bool {
		return Type(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, integrationTypeTag, integrationTypeText)
}
