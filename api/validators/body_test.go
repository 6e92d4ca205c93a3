package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
)

type sampleBody struct {
	Amount string `json:"amount" validate:"omitempty,numeric"`
	Note   string `json:"note" validate:"max=5"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","other":true}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"too long"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 5", details["note"])
}

func TestDecodeOptionalJSONBodyAcceptsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var body sampleBody
	require.NoError(t, DecodeOptionalJSONBody(req, &body))
	assert.Empty(t, body.Amount)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.Error(t, DecodeJSONBody(req, &body))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("returnId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "returnId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("nope"), "returnId")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "pay_1", SanitizeString("  pay_1  ", 10))
	assert.Equal(t, "pay", SanitizeString("pay_123", 3))
	assert.Equal(t, "pay_9", SanitizeString("pay\x00_9\n", 0))
}

func TestDecodeJSONBodyRejectsMalformedAndEmpty(t *testing.T) {
	var body sampleBody
	for _, raw := range []string{`{"amount":`, `[1,2]`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		err := DecodeJSONBody(req, &body)
		require.Error(t, err, raw)
		assert.Equal(t, "invalid request body", pkgerrors.As(err).Message(), raw)
	}

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, "request body required", pkgerrors.As(err).Message())
	require.NoError(t, DecodeOptionalJSONBody(httptest.NewRequest(http.MethodPost, "/", http.NoBody), &body))
}
