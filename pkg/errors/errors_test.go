package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableCodesAreServerErrors(t *testing.T) {
	for code, meta := range metadataByCode {
		if meta.Retryable {
			assert.GreaterOrEqual(t, meta.HTTPStatus, 500, code)
		} else {
			assert.Less(t, meta.HTTPStatus, 500, code)
		}
		assert.NotEmpty(t, meta.PublicMessage, code)
	}
}

func TestMetadataFor(t *testing.T) {
	assert.Equal(t, Metadata{http.StatusBadRequest, false, "validation failed", true}, MetadataFor(CodeValidation))
	assert.Equal(t, Metadata{http.StatusServiceUnavailable, true, "dependency unavailable", true}, MetadataFor(CodeDependency))
	assert.Equal(t, http.StatusUnprocessableEntity, MetadataFor(CodeStateConflict).HTTPStatus)
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))

	sig, body := MetadataFor(CodeSignatureInvalid), MetadataFor(CodeValidation)
	assert.Equal(t, sig.HTTPStatus, body.HTTPStatus, "both are client errors")
	assert.False(t, sig.DetailsAllowed, "signature failures never echo details")
}

func TestErrorValue(t *testing.T) {
	e := New(CodeValidation, "missing amount").WithDetails(map[string]string{"field": "amount"})
	assert.Equal(t, CodeValidation, e.Code())
	assert.Equal(t, "missing amount", e.Message())
	assert.Equal(t, map[string]string{"field": "amount"}, e.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing amount", e.Error())

	cause := stdErrors.New("connection reset")
	w := Wrap(CodeStorage, cause, "load order")
	assert.ErrorIs(t, w, cause)
	assert.Equal(t, "STORAGE_ERROR: load order: connection reset", w.Error())
	assert.Equal(t, "NOT_FOUND: gone", Wrap(CodeNotFound, nil, "gone").Error())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
	assert.Empty(t, nilErr.Error())
}

func TestCodeOfThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("apply capture: %w", New(CodeStorage, "db down"))
	assert.Equal(t, CodeStorage, CodeOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(New(CodeSignatureInvalid, "nope")))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.False(t, IsRetryable(nil))

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, "db down", typed.Message())
	assert.Nil(t, As(nil))
}
