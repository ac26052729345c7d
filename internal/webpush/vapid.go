// Package webpush implements the Web Push delivery pipeline: VAPID
// authentication and the aes128gcm message encryption and framing of
// RFC 8291. The framing is part of the wire contract with the push
// services; every byte position matters.
package webpush

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const vapidTokenTTL = 24 * time.Hour

// VAPIDKey is the server's ES256 identity presented to push services.
type VAPIDKey struct {
	key     *ecdsa.PrivateKey
	subject string
	now     func() time.Time
}

// NewVAPIDKey wraps an ECDSA P-256 private key and the contact URI
// (mailto: or https:) advertised to push services.
func NewVAPIDKey(key *ecdsa.PrivateKey, subject string) (*VAPIDKey, error) {
	if key == nil {
		return nil, fmt.Errorf("vapid: nil private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("vapid: key must be ECDSA P-256, got %s", key.Curve.Params().Name)
	}
	if subject == "" {
		return nil, fmt.Errorf("vapid: subject must not be empty")
	}
	return &VAPIDKey{key: key, subject: subject, now: time.Now}, nil
}

// PublicKey returns the uncompressed P-256 public point, base64url encoded
// without padding. This is the value browsers pass as applicationServerKey.
func (v *VAPIDKey) PublicKey() string {
	ecdhPub, err := v.key.PublicKey.ECDH()
	if err != nil {
		// Curve checked at construction; a P-256 key always converts.
		panic(fmt.Sprintf("vapid: public key conversion: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(ecdhPub.Bytes())
}

// AuthorizationHeader builds the `vapid t=<jwt>, k=<pubkey>` header value
// for a push endpoint. The JWT audience is the endpoint's origin and the
// token expires in 24 hours.
func (v *VAPIDKey) AuthorizationHeader(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("vapid: parsing endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("vapid: endpoint %q has no origin", endpoint)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": u.Scheme + "://" + u.Host,
		"exp": v.now().Add(vapidTokenTTL).Unix(),
		"sub": v.subject,
	})
	signed, err := token.SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("vapid: signing token: %w", err)
	}

	return fmt.Sprintf("vapid t=%s, k=%s", signed, v.PublicKey()), nil
}
