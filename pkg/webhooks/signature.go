package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Headers set on every outbound delivery.
const (
	SignatureHeader = "X-Fern-Signature"
	EventTypeHeader = "X-Fern-Event"
)

// Sign computes the hex-encoded HMAC-SHA256 of the payload using the
// webhook's shared secret. Receivers recompute this over the raw request
// body to authenticate the delivery.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the given signature matches the payload.
// Comparison is constant-time.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
