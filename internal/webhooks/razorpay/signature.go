package razorpaywebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
)

// Verify checks signature against the HMAC-SHA256 of the raw body keyed by
// secret. The signature must be the lowercase hex digest. A missing secret is
// a server configuration error, not a client error.
func Verify(secret string, body []byte, signature string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "missing signature")
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeSignatureInvalid, "invalid signature")
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
