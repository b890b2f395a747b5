// Package handler provides the HTTP handlers of the stratotrack API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stratotrack/stratotrack/internal/api/models"
	"github.com/stratotrack/stratotrack/internal/api/response"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. On failure it writes a
// 400 problem and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		detail := "invalid JSON body"
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			detail = "request body is empty"
		case errors.As(err, &syntaxErr):
			detail = fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			detail = fmt.Sprintf("field %q must be %s", typeErr.Field, typeErr.Type)
		case errors.As(err, &maxErr):
			detail = "request body too large"
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			detail = strings.TrimPrefix(err.Error(), "json: ")
		}
		response.BadRequest(w, r, detail, nil)
		return false
	}
	return check(w, r, dst)
}

// check validates v, writing a 400 problem on failure.
func check(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := validate.Struct(v); err != nil {
		response.BadRequest(w, r, "request validation failed", fieldErrors(err))
		return false
	}
	return true
}

func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out = append(out, models.FieldError{Field: field, Message: message(fe), Code: fe.Tag()})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid"
}
