package telephony

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature reports whether signatureHex is a valid hex-encoded
// HMAC-SHA256 of payload under secret. The payload must be the raw
// request bytes exactly as received: JSON key order is not stable, so
// re-serializing before verification breaks the signature.
//
// A missing signature or secret is a mismatch, never an error.
func VerifySignature(payload []byte, signatureHex, secret string) bool {
	if signatureHex == "" || secret == "" {
		return false
	}

	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return hmac.Equal(provided, mac.Sum(nil))
}

// Sign returns the hex-encoded HMAC-SHA256 of payload under secret.
// Used by tests and local tooling to produce valid webhook requests.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
