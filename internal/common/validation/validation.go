package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid input")

// Error lists every field that failed validation. It wraps ErrInvalidInput.
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidInput, strings.Join(e.Fields, "; "))
}

func (e *Error) Unwrap() error {
	return ErrInvalidInput
}

func New(fields ...string) *Error {
	return &Error{Fields: fields}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their JSON names, the ones API callers see
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// decimals are compared as numbers by the gt/gte/lte tags
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("key", validateKey)
	return v
}

// validateKey accepts ids that are safe to use as a single store path segment.
func validateKey(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/.#$[]")
}

// Struct validates v and returns an *Error describing every failing field.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return New(FormatValidationError(verrs)...)
}

func FormatValidationError(err error) []string {
	var errs []string

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()

			switch tag {
			case "required":
				errs = append(errs, fmt.Sprintf("%s is required", field))
			case "key":
				errs = append(errs, fmt.Sprintf("%s must be a non-empty id without path characters", field))
			case "gt":
				errs = append(errs, fmt.Sprintf("%s must be greater than %s", field, e.Param()))
			case "gte", "min":
				errs = append(errs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
			case "lte", "max":
				errs = append(errs, fmt.Sprintf("%s must be at most %s", field, e.Param()))
			case "oneof":
				errs = append(errs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
			case "url":
				errs = append(errs, fmt.Sprintf("%s must be a valid URL", field))
			default:
				errs = append(errs, fmt.Sprintf("%s is invalid (%s)", field, tag))
			}
		}
	}
	return errs
}

// Amount checks that amount lies within [min, max].
func Amount(field string, amount decimal.Decimal, min, max decimal.Decimal) error {
	if amount.LessThan(min) || amount.GreaterThan(max) {
		return New(fmt.Sprintf("%s must be between %s and %s", field, min, max))
	}
	return nil
}
