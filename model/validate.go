package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"calman.com/worklog/utils"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the work log specific tags on v.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("compactdatetime", func(fl validator.FieldLevel) bool {
		return utils.IsCompactDateTime(fl.Field().String())
	})
	_ = v.RegisterValidation("isodatetime", func(fl validator.FieldLevel) bool {
		_, err := utils.ParseISOTime(fl.Field().String())
		return err == nil
	})
}

// Validate checks a request payload before it is sent, or a record received
// from the backend.
func Validate(payload any) error {
	return validate.Struct(payload)
}

// DescribeValidation renders validator errors as one readable line.
func DescribeValidation(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, formatFieldError(fe))
	}
	return strings.Join(out, ", ")
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "gte":
		return fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("Field '%s' must be numeric", fe.Field())
	case "compactdatetime":
		return fmt.Sprintf("Field '%s' must be in YY.MM.DD HH:MM format", fe.Field())
	case "isodatetime":
		return fmt.Sprintf("Field '%s' must be an ISO datetime", fe.Field())
	case "gt":
		return fmt.Sprintf("Field '%s' must be greater than %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("Field '%s' failed validation for '%s'", fe.Field(), fe.Tag())
}
