package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
	"github.com/angelmondragon/storefront-payments/pkg/types"
)

// Codes whose internal message is safe to show the caller. Everything else
// gets the code's generic public message.
var echoMessage = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:       true,
	pkgerrors.CodeSignatureInvalid: true,
	pkgerrors.CodeUnauthorized:     true,
	pkgerrors.CodeForbidden:        true,
	pkgerrors.CodeNotFound:         true,
	pkgerrors.CodeConflict:         true,
	pkgerrors.CodeStateConflict:    true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteAck writes the gateway acknowledgement unwrapped.
func WriteAck(w http.ResponseWriter, ack types.WebhookAck) {
	writeJSON(w, http.StatusOK, ack)
}

// WriteError maps err to its HTTP status and error envelope. 5xx responses
// are logged as errors, everything else as a warning.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if echoMessage[typed.Code()] && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, errorFields(pkgerrors.Dump(err), meta.HTTPStatus))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr})
}

func errorFields(d pkgerrors.ErrorDump, status int) map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
		"http_status": status,
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_constraint"] = d.PGConstraint
		fields["pg_table"] = d.PGTable
		fields["pg_detail"] = d.PGDetail
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
