package student

import (
	"fmt"
	"reflect"
	"strings"

	"student-registry/internal/apperr"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports violations under the JSON
// field names clients actually send.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// checkStudent validates a full record and converts violations into a
// ValidationFailure with a field -> message map. Pure function of the input.
func checkStudent(v *validator.Validate, s *Student) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	violations, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(map[string]string, len(violations))
	for _, fe := range violations {
		fields[fe.Field()] = violationMessage(fe)
	}
	return apperr.Validation(fields)
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of MALE, FEMALE"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
