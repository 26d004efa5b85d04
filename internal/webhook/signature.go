package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

// Event is an outbound lifecycle notification such as "user.created".
//
// Data should be a struct (fields encode in declaration order) or a value whose
// encoding is otherwise fixed; the encoded bytes are what gets signed and sent.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data}
}

// Encode returns the canonical JSON form of the event: no HTML escaping and no
// trailing newline, matching what a JSON.stringify based receiver produces.
func (e Event) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, &SignatureComputationError{EventType: e.Type, Err: err}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// SignatureComputationError is returned when an event cannot be encoded for signing.
type SignatureComputationError struct {
	EventType string
	Err       error
}

func (e *SignatureComputationError) Error() string {
	return fmt.Sprintf("computing signature for %q event: %v", e.EventType, e.Err)
}

func (e *SignatureComputationError) Unwrap() error {
	return e.Err
}

// Sign encodes the event and returns its hex encoded HMAC-SHA256 signature.
func Sign(event Event, secret string) (string, error) {
	payload, err := event.Encode()
	if err != nil {
		return "", err
	}
	return SignBytes(payload, secret), nil
}

// SignBytes generates an HMAC-SHA256 signature for the exact payload bytes.
func SignBytes(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of payload under secret.
func Verify(payload []byte, signature, secret string) bool {
	decoded, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
