// Package signature implements the request-signing codec shared by every
// protocol generation: canonical string construction, body hashing, and
// HMAC-SHA256 signing over a per-pairing shared secret.
//
// The canonical string layout is part of the wire contract. Changing the
// field order or the delimiter invalidates every deployed client.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SecretSize is the length in bytes of a pairing secret.
	SecretSize = 32
	// NonceSize is the length in bytes of a request nonce.
	NonceSize = 16
	// IDSize is the length in bytes of a pairing or request identifier.
	IDSize = 16
)

// CanonicalString builds the string that is signed for a request:
// METHOD, path, body hash, timestamp, and nonce joined by newlines,
// with no trailing newline.
func CanonicalString(method, path, bodyHash string, ts int64, nonce string) string {
	return fmt.Sprintf("%s\n%s\n%s\n%d\n%s", method, path, bodyHash, ts, nonce)
}

// HashBody returns the standard-base64 SHA-256 digest of the request body.
// Requests without a body hash the empty byte string, never omit the field.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sign computes the standard-base64 HMAC-SHA256 of the canonical string
// under the raw secret bytes.
func Sign(secret []byte, canonical string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature for the canonical string and compares it
// against the supplied standard-base64 signature in constant time.
func Verify(secret []byte, canonical, sig string) bool {
	got, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonical))
	return hmac.Equal(mac.Sum(nil), got)
}

// GenerateID returns a fresh 128-bit identifier as lowercase hex.
func GenerateID() (string, error) {
	b := make([]byte, IDSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSecret returns a fresh 32-byte pairing secret, standard-base64
// encoded for the wire.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// GenerateNonce returns a fresh 16-byte nonce, standard-base64 encoded.
func GenerateNonce() (string, error) {
	b := make([]byte, NonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeKey decodes base64 material supplied by clients, which may arrive
// url-safe or standard, padded or unpadded.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(s)
	}
	// No distinguishing characters; either alphabet decodes identically.
	return base64.RawStdEncoding.DecodeString(s)
}
