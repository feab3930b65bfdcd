// Файл: pkg/customvalidator/validator.go

package customvalidator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidations регистрирует кастомные правила валидации
// в переданном экземпляре валидатора.
func RegisterCustomValidations(v *validator.Validate) error {
	return v.RegisterValidation("remark", isMeaningfulRemark)
}

// isMeaningfulRemark — комментарий обязателен и не может состоять из одних пробелов.
func isMeaningfulRemark(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
