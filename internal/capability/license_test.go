package capability

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLicenseKeys(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv, base64.StdEncoding.EncodeToString(pub)
}

func signLicense(t *testing.T, priv ed25519.PrivateKey, method jwt.SigningMethod, exp time.Time) string {
	t.Helper()
	claims := LicenseClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
		Customer:         "acme",
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(priv)
	require.NoError(t, err)
	return token
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLicensed_Valid(t *testing.T) {
	priv, pub := newLicenseKeys(t)
	key := signLicense(t, priv, jwt.SigningMethodEdDSA, time.Now().Add(time.Hour))

	assert.True(t, Licensed(key, pub, quietLogger()))
}

func TestLicensed_Rejected(t *testing.T) {
	priv, pub := newLicenseKeys(t)
	otherPriv, _ := newLicenseKeys(t)

	tests := []struct {
		name   string
		key    string
		public string
	}{
		{name: "empty key", key: "", public: pub},
		{name: "expired", key: signLicense(t, priv, jwt.SigningMethodEdDSA, time.Now().Add(-time.Hour)), public: pub},
		{name: "wrong signer", key: signLicense(t, otherPriv, jwt.SigningMethodEdDSA, time.Now().Add(time.Hour)), public: pub},
		{name: "garbage", key: "not-a-jwt", public: pub},
		{name: "bad public key", key: signLicense(t, priv, jwt.SigningMethodEdDSA, time.Now().Add(time.Hour)), public: "AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Licensed(tt.key, tt.public, quietLogger()))
		})
	}
}

func TestLicenseVerifier_RequiresExpiry(t *testing.T) {
	priv, pub := newLicenseKeys(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, LicenseClaims{Customer: "acme"}).SignedString(priv)
	require.NoError(t, err)

	v, err := NewLicenseVerifier(pub)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}

func TestLicenseVerifier_RejectsHMAC(t *testing.T) {
	_, pub := newLicenseKeys(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, LicenseClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	v, err := NewLicenseVerifier(pub)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}
