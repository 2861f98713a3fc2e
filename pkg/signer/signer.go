// Package signer produces request signatures from a canonical payload string.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"binconn/pkg/core"
)

// Signer signs the exact canonical payload of a request.
// Implementations must be safe for concurrent use.
type Signer interface {
	Sign(payload string) (string, error)
}

// HMAC signs with HMAC-SHA256 and returns lowercase hex.
type HMAC struct {
	secret []byte
}

// NewHMAC creates an HMAC signer. An empty secret is rejected.
func NewHMAC(secret string) (*HMAC, error) {
	if secret == "" {
		return nil, &core.SigningError{Op: "hmac", Err: errors.New("secret key is empty")}
	}
	return &HMAC{secret: []byte(secret)}, nil
}

// Sign returns hex(HMAC-SHA256(secret, payload)).
func (s *HMAC) Sign(payload string) (string, error) {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil)), nil
}
