package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/taskboard-backend/internal/core/errors"
)

const maxBodyBytes = 1 << 20

// Validator collects field errors from a chain of checks. Format checks
// skip empty values so they compose with Required.
type Validator struct {
	errs *apperrors.ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{errs: apperrors.NewValidationErrors()}
}

func (v *Validator) HasErrors() bool { return v.errs.HasErrors() }

func (v *Validator) Errors() *apperrors.ValidationErrors { return v.errs }

func (v *Validator) check(field string, ok bool, message string) *Validator {
	if !ok {
		v.errs.Add(field, message)
	}
	return v
}

func (v *Validator) Required(field, value string) *Validator {
	return v.check(field, strings.TrimSpace(value) != "", "This field is required")
}

// MaxLength counts characters, not bytes.
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	return v.check(field, utf8.RuneCountInString(value) <= max, fmt.Sprintf("Must be at most %d characters", max))
}

func (v *Validator) Email(field, value string) *Validator {
	if value == "" {
		return v
	}
	addr, err := mail.ParseAddress(value)
	return v.check(field, err == nil && addr.Address == value && strings.Contains(addr.Address, "."), "Must be a valid email address")
}

func (v *Validator) UUID(field, value string) *Validator {
	if value == "" {
		return v
	}
	_, err := uuid.Parse(value)
	return v.check(field, err == nil && len(value) == 36, "Must be a valid UUID")
}

func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	return v.check(field, slices.Contains(allowed, value), "Must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	return v.check(field, valid, message)
}

// DecodeJSON reads a bounded JSON body into a new T, rejecting unknown
// fields.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	req := new(T)
	switch err := dec.Decode(req); {
	case err == nil:
		return req, nil
	case errors.Is(err, io.EOF):
		return nil, apperrors.NewBadRequestError(err, "Request body is required")
	default:
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}
}
