package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Errors returned by Verify.
var (
	ErrMissingFields    = errors.New("signature: required fields missing")
	ErrInvalidSignature = errors.New("signature: mismatch")
)

// Verifier authenticates gateway payment proofs with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a verifier for the gateway's shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex encoded HMAC-SHA256 of "orderID|paymentID".
func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the expected HMAC in constant time.
func (v *Verifier) Verify(orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return ErrMissingFields
	}
	if len(v.secret) == 0 {
		return ErrInvalidSignature
	}
	expected := v.Sign(orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
