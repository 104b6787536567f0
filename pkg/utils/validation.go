package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	// name fields after the request parameter they came from
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
}

// ValidateStruct checks the validate tags of a command or query and joins
// every violation into one message.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return err
	}

	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = describe(v)
	}
	return errors.New(strings.Join(messages, "; "))
}

func describe(v validator.FieldError) string {
	switch v.Tag() {
	case "required":
		return v.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", v.Field(), v.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", v.Field(), v.Param())
	}
	return fmt.Sprintf("%s failed %q", v.Field(), v.Tag())
}
