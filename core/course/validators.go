package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// InitValidators registers this package's validators; call once at startup.
func InitValidators(v *validator.Validate, _ ut.Translator) {
	validate = v
}

func (nc NewCourse) Validate() error {
	return validate.Struct(nc)
}

func (nc NewCategory) Validate() error {
	return validate.Struct(nc)
}

func (uc UpdateCategory) Validate() error {
	return validate.Struct(uc)
}

func (na NewAssignment) Validate() error {
	return validate.Struct(na)
}
