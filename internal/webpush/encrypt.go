package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	saltSize   = 16
	keySize    = 16 // AES-128 content-encryption key
	nonceSize  = 12
	pointSize  = 65 // uncompressed P-256 point
	recordSize = 4096
)

// Subscription is a push subscription with its key material decoded.
type Subscription struct {
	Endpoint string
	P256dh   []byte // subscriber public key, 65-byte uncompressed point
	Auth     []byte // 16-byte auth secret
}

// Encrypt seals the plaintext for the subscriber per RFC 8291 (aes128gcm),
// generating a fresh ephemeral key pair and salt for this message.
func Encrypt(plaintext []byte, sub Subscription) ([]byte, error) {
	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("webpush: generating ephemeral key: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("webpush: generating salt: %w", err)
	}
	return encrypt(plaintext, sub, ephemeral, salt)
}

// encrypt is the deterministic core, split out so the framing can be
// verified against a reference decryption with fixed inputs.
func encrypt(plaintext []byte, sub Subscription, ephemeral *ecdh.PrivateKey, salt []byte) ([]byte, error) {
	if len(salt) != saltSize {
		return nil, fmt.Errorf("webpush: salt must be %d bytes, got %d", saltSize, len(salt))
	}

	subscriberKey, err := ecdh.P256().NewPublicKey(sub.P256dh)
	if err != nil {
		return nil, fmt.Errorf("webpush: invalid subscriber key: %w", err)
	}
	sharedSecret, err := ephemeral.ECDH(subscriberKey)
	if err != nil {
		return nil, fmt.Errorf("webpush: ecdh: %w", err)
	}
	ephemeralPub := ephemeral.PublicKey().Bytes()

	// First HKDF pass: mix the auth secret into the ECDH output. The info
	// string binds both public keys, subscriber first.
	ikmInfo := make([]byte, 0, 14+2*pointSize)
	ikmInfo = append(ikmInfo, []byte("WebPush: info\x00")...)
	ikmInfo = append(ikmInfo, sub.P256dh...)
	ikmInfo = append(ikmInfo, ephemeralPub...)
	ikm, err := deriveKey(sharedSecret, sub.Auth, ikmInfo, 32)
	if err != nil {
		return nil, err
	}

	// Second HKDF pass, keyed by the message salt.
	cek, err := deriveKey(ikm, salt, []byte("Content-Encoding: aes128gcm\x00"), keySize)
	if err != nil {
		return nil, err
	}
	nonce, err := deriveKey(ikm, salt, []byte("Content-Encoding: nonce\x00"), nonceSize)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("webpush: aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("webpush: gcm: %w", err)
	}

	// Single record, delimiter 0x02, no extra padding.
	padded := make([]byte, len(plaintext)+1)
	copy(padded, plaintext)
	padded[len(plaintext)] = 0x02
	ciphertext := gcm.Seal(nil, nonce, padded, nil)

	// salt(16) || rs(4, big-endian) || idlen(1) || ephemeral pubkey(65) || ciphertext
	out := make([]byte, 0, saltSize+4+1+pointSize+len(ciphertext))
	out = append(out, salt...)
	out = binary.BigEndian.AppendUint32(out, recordSize)
	out = append(out, byte(pointSize))
	out = append(out, ephemeralPub...)
	out = append(out, ciphertext...)
	return out, nil
}

func deriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("webpush: hkdf: %w", err)
	}
	return out, nil
}
