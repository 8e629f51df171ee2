// Package form validates screen input before anything is sent to the backend.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

func init() {
	v, err := newValidator()
	if err != nil {
		panic(err)
	}
	validate = v
}

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	rules := []struct {
		tag string
		fn  validator.Func
	}{
		{"trimmedmin", trimmedMin},
		{"strongpassword", strongPassword},
	}
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", r.tag, err)
		}
	}
	return v, nil
}

// trimmedMin checks the rune length of the value with surrounding spaces removed.
func trimmedMin(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
}

func strongPassword(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return upperPattern.MatchString(v) && digitPattern.MatchString(v) && specialPattern.MatchString(v)
}

// Login is the sign-in form.
type Login struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup is the self registration form.
type Signup struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Post is the create and edit post form.
type Post struct {
	Title   string `json:"title" validate:"required,trimmedmin=3"`
	Content string `json:"content" validate:"required,trimmedmin=10"`
}

// NewUser is the professor's create user form.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=STUDENT PROFESSOR"`
}

// EditUser is the professor's edit user form.
type EditUser struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Role  string `json:"role" validate:"required,oneof=STUDENT PROFESSOR"`
}

// Password is the change password form.
type Password struct {
	Password string `json:"password" validate:"required,strongpassword"`
	Confirm  string `json:"confirm" validate:"required,eqfield=Password"`
}

// Error describes the first problem found in a form.
type Error struct {
	Field   string
	Tag     string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Missing reports whether the error is about an empty required field.
func (e *Error) Missing() bool {
	return e.Tag == "required"
}

var messages = map[string]string{
	"required":       "The field '%s' is required.",
	"trimmedmin":     "The field '%s' must be at least %s characters long.",
	"oneof":          "The field '%s' must be one of %s.",
	"strongpassword": "The field '%s' must contain an uppercase letter, a number and a special character.",
	"eqfield":        "The field '%s' must match '%s'.",
}

func message(e validator.FieldError) string {
	msg, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("Field '%s' is invalid: %s", e.Field(), e.Tag())
	}
	param := e.Param()
	if e.Tag() == "eqfield" {
		param = strings.ToLower(param)
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, e.Field(), param)
	}
	return fmt.Sprintf(msg, e.Field())
}

// Validate checks a form struct. Missing fields are reported before any
// length or format problem.
func Validate(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fmt.Errorf("validate form: %w", err)
	}

	first := errs[0]
	for _, e := range errs {
		if e.Tag() == "required" {
			first = e
			break
		}
	}
	return &Error{Field: first.Field(), Tag: first.Tag(), Message: message(first)}
}
