package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-payments/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"
	// AdminReplayTTL is how long a refund response can be replayed.
	AdminReplayTTL = 7 * 24 * time.Hour
)

// ResponseStore persists replayable responses keyed by the client's
// Idempotency-Key header.
type ResponseStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// storedResponse is the JSON value kept under an idempotency key. Body is
// base64 encoded by encoding/json.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

func (s storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// Idempotency makes unsafe admin requests replayable. It belongs on routes
// that move money; safe methods pass straight through.
func Idempotency(store ResponseStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || !isUnsafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			bodyHash := sha256Hex(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)

			prior, found, err := loadResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				if prior.BodyHash != bodyHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.writeTo(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			// Server-side failures stay retryable under the same key.
			if capture.status >= http.StatusInternalServerError {
				return
			}
			saveResponse(ctx, store, logg, key, storedResponse{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				BodyHash:    bodyHash,
			})
		})
	}
}

func loadResponse(ctx context.Context, store ResponseStore, key string) (storedResponse, bool, error) {
	var resp storedResponse
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return resp, false, nil
	}
	if err != nil {
		return resp, false, err
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return resp, false, err
	}
	return resp, true, nil
}

func saveResponse(ctx context.Context, store ResponseStore, logg *logger.Logger, key string, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		_, err = store.SetNX(ctx, key, string(payload), AdminReplayTTL)
	}
	if err != nil && logg != nil {
		logg.Error(logg.WithField(ctx, "idempotency_key", key), "persist idempotency record", err)
	}
}

// requestScope ties a client key to the caller and the concrete URL so two
// admins, or two returns, never share a stored response.
func requestScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (c *responseCapture) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
