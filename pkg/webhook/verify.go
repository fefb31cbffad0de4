package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the provider-issued event signature.
const SignatureHeader = "X-Billing-Signature"

const signaturePrefix = "sha256="

// VerifySignature checks the provider signature of a raw event body: an
// HMAC-SHA256 over the exact bytes received, hex-encoded, optionally
// prefixed with "sha256=". It must run on the raw payload; re-serialized
// JSON is not guaranteed to be byte-identical to what was signed.
func VerifySignature(body []byte, signature string, secret []byte) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	if len(secret) == 0 {
		return ErrNotConfigured
	}

	signature = strings.TrimPrefix(signature, signaturePrefix)
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the signature for a body, in the exact form VerifySignature
// accepts. Intended for tests and local tooling.
func Sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
