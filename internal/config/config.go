package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	EnvServerHost            = "PG_SERVER_HOST"
	EnvServerPort            = "PG_SERVER_PORT"
	EnvServerReadTimeoutSec  = "PG_SERVER_READ_TIMEOUT_SEC"
	EnvServerWriteTimeoutSec = "PG_SERVER_WRITE_TIMEOUT_SEC"
	EnvServerIdleTimeoutSec  = "PG_SERVER_IDLE_TIMEOUT_SEC"
	EnvVAPIDKeyPath          = "PG_VAPID_KEY_PATH"
	EnvVAPIDSubject          = "PG_VAPID_SUBJECT"
	EnvDevEphemeralKey       = "PG_DEV_EPHEMERAL_KEY"
	EnvSQLitePath            = "PG_SQLITE_PATH"
	EnvWebAppOrigin          = "PG_WEBAPP_ORIGIN"
	EnvEnvironment           = "PG_ENVIRONMENT"

	MinPortNumber = 1
	MaxPortNumber = 65535
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	ServerHost            string
	ServerPort            int
	ServerReadTimeoutSec  int
	ServerWriteTimeoutSec int
	ServerIdleTimeoutSec  int

	// VAPIDKeyPath points at a PEM-encoded ECDSA P-256 private key used as
	// the Web Push VAPID identity. DevEphemeralKey generates one instead.
	VAPIDKeyPath    string
	VAPIDSubject    string
	DevEphemeralKey bool

	// SQLitePath enables persistent stores; empty means in-memory only.
	SQLitePath string

	// WebAppOrigin is the origin allowed by CORS outside development.
	WebAppOrigin string
	Environment  string
}

// LoadFromEnv loads and validates configuration from environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		ServerHost:            envOrDefault(EnvServerHost, "0.0.0.0"),
		ServerPort:            intEnvOrDefault(EnvServerPort, 8080),
		ServerReadTimeoutSec:  intEnvOrDefault(EnvServerReadTimeoutSec, 15),
		ServerWriteTimeoutSec: intEnvOrDefault(EnvServerWriteTimeoutSec, 15),
		ServerIdleTimeoutSec:  intEnvOrDefault(EnvServerIdleTimeoutSec, 60),
		VAPIDKeyPath:          strings.TrimSpace(os.Getenv(EnvVAPIDKeyPath)),
		VAPIDSubject:          strings.TrimSpace(os.Getenv(EnvVAPIDSubject)),
		DevEphemeralKey:       boolEnvOrDefault(EnvDevEphemeralKey, false),
		SQLitePath:            strings.TrimSpace(os.Getenv(EnvSQLitePath)),
		WebAppOrigin:          strings.TrimSpace(os.Getenv(EnvWebAppOrigin)),
		Environment:           envOrDefault(EnvEnvironment, "production"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	if c.ServerHost == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvServerHost)
	}
	if c.ServerPort < MinPortNumber || c.ServerPort > MaxPortNumber {
		return fmt.Errorf("invalid %s: must be in range %d..%d", EnvServerPort, MinPortNumber, MaxPortNumber)
	}
	if c.ServerReadTimeoutSec <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvServerReadTimeoutSec)
	}
	if c.ServerWriteTimeoutSec <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvServerWriteTimeoutSec)
	}
	if c.ServerIdleTimeoutSec <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvServerIdleTimeoutSec)
	}
	if c.DevEphemeralKey && c.VAPIDKeyPath != "" {
		return fmt.Errorf("invalid config: %s and %s are mutually exclusive", EnvDevEphemeralKey, EnvVAPIDKeyPath)
	}
	if !c.DevEphemeralKey && c.VAPIDKeyPath == "" {
		return fmt.Errorf("invalid %s: must not be empty (or set %s=true for dev mode)", EnvVAPIDKeyPath, EnvDevEphemeralKey)
	}
	if c.VAPIDSubject == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvVAPIDSubject)
	}
	if !strings.HasPrefix(c.VAPIDSubject, "mailto:") && !strings.HasPrefix(c.VAPIDSubject, "https://") {
		return fmt.Errorf("invalid %s: must be a mailto: or https: URI", EnvVAPIDSubject)
	}
	if c.Environment != "development" && c.WebAppOrigin == "" {
		return fmt.Errorf("invalid %s: required outside development", EnvWebAppOrigin)
	}
	return nil
}

// LoadVAPIDKey loads the ECDSA P-256 VAPID key from the path in cfg.
// If cfg.DevEphemeralKey is true, it generates an ephemeral key instead;
// existing push subscriptions stop working on every restart in that mode.
func LoadVAPIDKey(cfg Config) (*ecdsa.PrivateKey, error) {
	if cfg.DevEphemeralKey {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("ephemeral key generation failed: %w", err)
		}
		return key, nil
	}

	data, err := os.ReadFile(cfg.VAPIDKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading VAPID key %q: %w", cfg.VAPIDKeyPath, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("VAPID key %q: no PEM block found", cfg.VAPIDKeyPath)
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("VAPID key %q: %w", cfg.VAPIDKeyPath, err)
		}
		if key.Curve != elliptic.P256() {
			return nil, fmt.Errorf("VAPID key %q: must be ECDSA P-256, got %s", cfg.VAPIDKeyPath, key.Curve.Params().Name)
		}
		return key, nil
	case "PRIVATE KEY":
		// PKCS#8 wrapped key
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("VAPID key %q: %w", cfg.VAPIDKeyPath, err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("VAPID key %q: must be ECDSA P-256", cfg.VAPIDKeyPath)
		}
		if key.Curve != elliptic.P256() {
			return nil, fmt.Errorf("VAPID key %q: must be ECDSA P-256, got %s", cfg.VAPIDKeyPath, key.Curve.Params().Name)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("VAPID key %q: unsupported PEM type %q", cfg.VAPIDKeyPath, block.Type)
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnvOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func boolEnvOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
