package handlers

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Local numbers start with 0, the international form with +84.
var phonePattern = regexp.MustCompile(`^(\+84|0)\d{8,10}$`)

func validPhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

// RegisterValidators installs custom binding rules on gin's validator
// engine. Call once before routes are served.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("phone", validPhone)
	}
}
