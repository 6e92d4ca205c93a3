package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
)

// maxBodyBytes caps admin request bodies.
const maxBodyBytes = 64 << 10

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

// DecodeJSONBody decodes a required JSON object into dest and validates it.
// Unknown fields are rejected.
func DecodeJSONBody(r *http.Request, dest any) error {
	return decode(r, dest, false)
}

// DecodeOptionalJSONBody treats an empty body as {}.
func DecodeOptionalJSONBody(r *http.Request, dest any) error {
	return decode(r, dest, true)
}

func decode(r *http.Request, dest any, optional bool) error {
	if r.Body != nil && r.Body != http.NoBody {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		err := dec.Decode(dest)
		_, _ = io.Copy(io.Discard, r.Body)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF) && optional:
		case errors.Is(err, io.EOF):
			return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
		default:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
				WithDetails(map[string]string{"body": err.Error()})
		}
	} else if !optional {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
	}
	return validateStruct(dest)
}

func validateStruct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "numeric":
		return "must be numeric"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}
