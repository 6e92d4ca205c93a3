package razorpaywebhook

import (
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-payments/pkg/errors"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	valid := Sign("whsec", body)

	cases := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		code      pkgerrors.Code
	}{
		{name: "valid", secret: "whsec", body: body, signature: valid},
		{name: "missing secret", secret: "", body: body, signature: valid, code: pkgerrors.CodeInternal},
		{name: "missing signature", secret: "whsec", body: body, signature: "", code: pkgerrors.CodeSignatureInvalid},
		{name: "wrong secret", secret: "other", body: body, signature: valid, code: pkgerrors.CodeSignatureInvalid},
		{name: "tampered body", secret: "whsec", body: []byte(`{"event":"payment.failed"}`), signature: valid, code: pkgerrors.CodeSignatureInvalid},
		{name: "uppercase hex", secret: "whsec", body: body, signature: strings.ToUpper(valid), code: pkgerrors.CodeSignatureInvalid},
		{name: "truncated", secret: "whsec", body: body, signature: valid[:len(valid)-2], code: pkgerrors.CodeSignatureInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.secret, tc.body, tc.signature)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("expected valid signature, got %v", err)
				}
				return
			}
			if got := pkgerrors.CodeOf(err); got != tc.code {
				t.Fatalf("expected %s, got %s (%v)", tc.code, got, err)
			}
		})
	}
}

func TestVerifyRejectsEverySingleByteFlip(t *testing.T) {
	body := []byte(`{"event":"refund.processed","payload":{}}`)
	signature := Sign("whsec", body)
	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		if err := Verify("whsec", mutated, signature); pkgerrors.CodeOf(err) != pkgerrors.CodeSignatureInvalid {
			t.Fatalf("byte %d: expected signature rejection, got %v", i, err)
		}
	}
}
