package task

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("task_status", statusValidator); err != nil {
		panic(fmt.Sprintf("failed to register status validator: %v", err))
	}

	return v
}

func statusValidator(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}

// Validate checks a task before it is written. The name is expected to be
// trimmed already.
func Validate(t *Task) error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}

	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "task_status":
		names := make([]string, 0, len(Statuses()))
		for _, s := range Statuses() {
			names = append(names, string(s))
		}
		return "must be one of " + strings.Join(names, ", ")
	default:
		return "is invalid"
	}
}
