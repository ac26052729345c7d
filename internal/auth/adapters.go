package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// Header names for the current protocol generation.
const (
	HeaderPairingID = "X-Pairing-ID"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"

	authScheme = "HMAC-SHA256 "
)

// FromHeaders extracts credentials from the current-generation headers.
// Absent or malformed values yield zero fields; the authenticator turns
// those into ErrMissingCredentials.
func FromHeaders(r *http.Request) Credentials {
	c := Credentials{
		PairingID: r.Header.Get(HeaderPairingID),
		Nonce:     r.Header.Get(HeaderNonce),
	}
	if ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64); err == nil {
		c.Timestamp = ts
	}
	if auth := r.Header.Get("Authorization"); len(auth) > len(authScheme) && auth[:len(authScheme)] == authScheme {
		c.Signature = auth[len(authScheme):]
	}
	return c
}

// FromQuery extracts legacy credentials from the query string, used by
// signed GETs that have no body to embed them in.
func FromQuery(r *http.Request) Credentials {
	q := r.URL.Query()
	c := Credentials{
		PairingID: q.Get("pairingId"),
		Nonce:     q.Get("nonce"),
		Signature: q.Get("signature"),
	}
	if ts, err := strconv.ParseInt(q.Get("ts"), 10, 64); err == nil {
		c.Timestamp = ts
	}
	return c
}

type legacyEnvelope struct {
	PairingID string `json:"pairingId"`
	Ts        int64  `json:"ts"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// FromBody extracts legacy credentials embedded in a JSON body and returns
// the bytes the client actually signed: the raw body with the signature
// value blanked. Clients serialize with `"signature":""`, compute the body
// hash, then fill the field in, so verification must undo exactly that.
func FromBody(body []byte) (Credentials, []byte) {
	var env legacyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Credentials{}, body
	}

	c := Credentials{
		PairingID: env.PairingID,
		Timestamp: env.Ts,
		Nonce:     env.Nonce,
		Signature: env.Signature,
	}

	signed := body
	if env.Signature != "" {
		needle := []byte(`"signature":"` + env.Signature + `"`)
		signed = bytes.Replace(body, needle, []byte(`"signature":""`), 1)
	}
	return c, signed
}
