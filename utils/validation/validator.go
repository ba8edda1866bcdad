package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// EmailRegex is a simple email validation regex
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	PasswordMinLength = 8

	resourceTypes = map[string]bool{
		"notes":               true,
		"pyq":                 true,
		"presentation":        true,
		"link":                true,
		"video":               true,
		"important_questions": true,
	}
)

// Validator wraps the go-playground validator with the app's custom tags
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("resource_type", func(fl validator.FieldLevel) bool {
		return resourceTypes[fl.Field().String()]
	})
	_ = v.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
		return IsHTTPURL(fl.Field().String())
	})
	return &Validator{validate: v}
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

var std = NewValidator()

// ValidateStruct validates with the shared validator
func ValidateStruct(s interface{}) error {
	return std.ValidateStruct(s)
}

// IsValidationError reports whether err came from struct validation
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

// FormatValidationErrors converts validation errors to field -> message
func FormatValidationErrors(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			field := strings.ToLower(e.Field())
			switch e.Tag() {
			case "required":
				errs[field] = fmt.Sprintf("%s is required", e.Field())
			case "email":
				errs[field] = "Invalid email format"
			case "min":
				errs[field] = fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
			case "max":
				errs[field] = fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
			case "gte":
				errs[field] = fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
			case "lte":
				errs[field] = fmt.Sprintf("%s must be less than or equal to %s", e.Field(), e.Param())
			case "oneof":
				errs[field] = fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
			case "resource_type":
				errs[field] = "Unknown resource type"
			case "http_url":
				errs[field] = "Must be an http(s) URL"
			default:
				errs[field] = fmt.Sprintf("%s is invalid", e.Field())
			}
		}
	}

	return errs
}

// IsResourceType reports whether t is a known resource type
func IsResourceType(t string) bool {
	return resourceTypes[t]
}

func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func ValidateEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	return EmailRegex.MatchString(email)
}

// ValidatePassword checks length and that at least one letter is present
func ValidatePassword(password string) (bool, []string) {
	errs := []string{}

	if len(password) < PasswordMinLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters", PasswordMinLength))
	}

	hasLetter := false
	for _, char := range password {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		errs = append(errs, "Password must contain at least one letter")
	}

	return len(errs) == 0, errs
}

// SanitizeString strips null bytes and surrounding whitespace
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
