package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/benvon/cinematch/internal/models"
)

// Validate is the shared validator. Field names in its errors are the JSON
// names clients send.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return strings.ToLower(f.Name)
		}
		return name
	})

	custom := map[string]validator.Func{
		"list_type": validateListType,
		"not_blank": validateNotBlank,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
	return v
}

func validateListType(fl validator.FieldLevel) bool {
	_, ok := models.ParseListType(fl.Field().String())
	return ok
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateListType parses a list name from a path or body.
func ValidateListType(value string) (models.ListType, error) {
	lt, ok := models.ParseListType(value)
	if !ok {
		return "", fmt.Errorf("invalid list type: %s (must be 'favorites', 'watched', or 'watch-later')", value)
	}
	return lt, nil
}

// Message turns a validator error into a single client-facing sentence.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation failed"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "not_blank":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "list_type":
		return fmt.Sprintf("%s must be one of favorites, watched, watch-later", field)
	}
	return fmt.Sprintf("Validation failed: %s", fe.Error())
}
