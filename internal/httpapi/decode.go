package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError describes one failed validation rule, keyed by the request's
// JSON field name rather than the Go struct field name.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// DecodeAndValidate reads and JSON-decodes r.Body into dst, rejecting unknown
// fields and bodies over maxBodyBytes, then runs struct validation tags
// against the result. On failure it writes the error envelope itself and
// returns false; callers should return immediately when it does.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		Fail(w, http.StatusBadRequest, "bad_request", describeDecodeError(err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			FailWithDetails(w, http.StatusUnprocessableEntity, "validation_failed", "request failed validation", fieldErrors(verrs))
			return false
		}
		Fail(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return false
	}

	return true
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: toSnakeCase(fe.Field()),
			Rule:  fe.Tag(),
		})
	}
	return out
}

func describeDecodeError(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "request body too large"
	}
	return fmt.Sprintf("malformed request body: %s", err.Error())
}

func toSnakeCase(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
