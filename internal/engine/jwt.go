package engine

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Priya8975/identity-service/internal/domain"
)

// SessionClaims are carried by JWTs issued for a session.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type jwtIssuer struct {
	key    ed25519.PrivateKey
	kid    string
	issuer string
}

func newJWTIssuer(key ed25519.PrivateKey, issuer string) (*jwtIssuer, error) {
	if key == nil {
		_, generated, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
		key = generated
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length %d", len(key))
	}

	pub := key.Public().(ed25519.PublicKey)
	sum := sha256.Sum256(pub)
	return &jwtIssuer{
		key:    key,
		kid:    base64.RawURLEncoding.EncodeToString(sum[:8]),
		issuer: issuer,
	}, nil
}

// ParseEd25519PrivateKey decodes a base64 ed25519 seed or private key.
func ParseEd25519PrivateKey(encoded string) (ed25519.PrivateKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding private key: %w", err)
		}
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

func (j *jwtIssuer) issue(user *domain.User, now time.Time) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{j.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtTTL)),
		},
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = j.kid
	return token.SignedString(j.key)
}

// jwk is an OKP JSON Web Key.
type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

func (j *jwtIssuer) keySet() map[string][]jwk {
	pub := j.key.Public().(ed25519.PublicKey)
	return map[string][]jwk{
		"keys": {{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(pub),
			Kid: j.kid,
			Alg: jwt.SigningMethodEdDSA.Alg(),
			Use: "sig",
		}},
	}
}

func (e *Engine) issueToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := e.requireSession(w, r)
	if !ok {
		return
	}
	token, err := e.jwt.issue(&sess.User, e.now())
	if err != nil {
		e.respondError(w, r, fmt.Errorf("signing jwt: %w", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (e *Engine) jwks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	respondJSON(w, http.StatusOK, e.jwt.keySet())
}
