package capability

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LicenseClaims are the claims carried by an enterprise license key.
type LicenseClaims struct {
	jwt.RegisteredClaims
	Customer string `json:"customer,omitempty"`
}

// LicenseVerifier checks EdDSA signed license keys.
type LicenseVerifier struct {
	key ed25519.PublicKey
	now func() time.Time
}

// NewLicenseVerifier parses a base64 encoded ed25519 public key.
func NewLicenseVerifier(publicKey string) (*LicenseVerifier, error) {
	raw, err := decodeBase64(strings.TrimSpace(publicKey))
	if err != nil {
		return nil, fmt.Errorf("decode license public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("license public key must be %d bytes", ed25519.PublicKeySize)
	}
	return &LicenseVerifier{key: ed25519.PublicKey(raw), now: time.Now}, nil
}

// Verify validates the signature and expiry of a license key.
func (v *LicenseVerifier) Verify(licenseKey string) (*LicenseClaims, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	if licenseKey == "" {
		return nil, errors.New("license key is empty")
	}

	var claims LicenseClaims
	_, err := jwt.ParseWithClaims(licenseKey, &claims, func(token *jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid license key: %w", err)
	}
	return &claims, nil
}

// Licensed reports whether licenseKey is a valid license for publicKey.
// Every failure means "not licensed" and is logged, never returned.
func Licensed(licenseKey, publicKey string, logger *slog.Logger) bool {
	if licenseKey == "" {
		return false
	}

	v, err := NewLicenseVerifier(publicKey)
	if err != nil {
		logger.Warn("license check skipped", "error", err)
		return false
	}

	claims, err := v.Verify(licenseKey)
	if err != nil {
		logger.Warn("license rejected", "error", err)
		return false
	}

	logger.Info("license accepted", "customer", claims.Customer, "expires_at", claims.ExpiresAt.Time)
	return true
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
