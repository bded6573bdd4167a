// Package validation holds the booking request rules shared by the HTTP
// binding layer and the booking engine.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	TagSeat  = "seat"
	TagPhone = "phone"
)

var (
	seatPattern  = regexp.MustCompile(`^\d+[A-F]$`)
	phonePattern = regexp.MustCompile(`^\d{10,}$`)
)

// New returns a validator with the booking rules registered and field names
// reported by their json tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register adds the custom rules to an existing validator instance.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation(TagSeat, func(fl validator.FieldLevel) bool {
		return seatPattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register %s rule: %w", TagSeat, err)
	}
	if err := v.RegisterValidation(TagPhone, func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register %s rule: %w", TagPhone, err)
	}
	return nil
}

// RegisterGin installs the rules on gin's default binding engine so request
// structs can use them in `binding` tags.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

// ToValidationError converts validator failures into the domain error with a
// per-field message map. The first failing field provides the headline. Errors
// that already are validation errors pass through.
func ToValidationError(err error) *domain.ValidationError {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError(err)
	}

	out := &domain.ValidationError{Fields: make(map[string]string, len(verrs)), Err: err}
	for _, fe := range verrs {
		msg := message(fe)
		if out.Message == "" {
			out.Message = msg
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case TagSeat:
		return "Seat must be format like '5A' or '10C'."
	case TagPhone:
		return "Phone must be at least 10 digits."
	case "email":
		return "Invalid email format."
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", fe.Field(), fe.Param())
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation.", fe.Field(), fe.Tag())
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
