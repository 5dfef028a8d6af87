package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bloodGroups are the accepted values of the bloodgroup rule.
var bloodGroups = map[string]struct{}{
	"A+": {}, "A-": {}, "B+": {}, "B-": {},
	"AB+": {}, "AB-": {}, "O+": {}, "O-": {},
}

// fieldLabels are the human names used in validation messages.
var fieldLabels = map[string]string{
	"name":         "Name",
	"email":        "Email",
	"password":     "Password",
	"mobileNumber": "Mobile Number",
	"bloodGroup":   "Blood Group",
	"emails":       "Emails",
	"role":         "Role",
}

// newValidator returns a validator that reports JSON field names and knows
// the bloodgroup rule.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	//nolint:errcheck // tag name is static and valid
	v.RegisterValidation("bloodgroup", func(fl validator.FieldLevel) bool {
		_, ok := bloodGroups[fl.Field().String()]
		return ok
	})
	return v
}

// normalizer is implemented by request bodies that trim their fields
// before validation.
type normalizer interface {
	normalize()
}

// decodeAndValidate reads a JSON body into dst and validates it. On
// failure it writes a 422 and returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeValidationError(w, []FieldError{{Field: "body", Message: decodeMessage(err)}})
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			s.internalError(w, r, fmt.Errorf("validating request: %w", err))
			return false
		}
		writeValidationError(w, fieldErrors(verrs))
		return false
	}
	return true
}

func decodeMessage(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "Request body is too large"
	}
	return "Request body must be valid JSON"
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " cannot be empty"
	case "email":
		return label + " is badly formatted"
	case "min":
		if fe.Kind() == reflect.Slice {
			return label + " cannot be empty"
		}
		return fmt.Sprintf("%s should be minimum %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s should be at most %s characters", label, fe.Param())
	case "len", "numeric":
		return label + " is badly formatted"
	case "bloodgroup", "oneof":
		return label + " is invalid"
	default:
		return label + " is invalid"
	}
}
