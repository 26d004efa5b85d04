package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of the receiver's response body is read.
const maxResponseBytes = 64 << 10

// ErrorKind classifies why a webhook call failed.
type ErrorKind int

const (
	// RemoteRejected means the endpoint answered with a non-2xx status.
	RemoteRejected ErrorKind = iota + 1
	// NoResponse means the request was sent but no response arrived.
	NoResponse
	// RequestSetupFailed means the request could not be built or sent.
	RequestSetupFailed
)

func (k ErrorKind) String() string {
	switch k {
	case RemoteRejected:
		return "remote_rejected"
	case NoResponse:
		return "no_response"
	case RequestSetupFailed:
		return "request_setup_failed"
	default:
		return "unknown"
	}
}

// Error is returned by Dispatch for every failed call.
type Error struct {
	Kind       ErrorKind
	EventType  string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case RemoteRejected:
		return fmt.Sprintf("webhook call failed with status %d: %s", e.StatusCode, e.Body)
	case NoResponse:
		return fmt.Sprintf("no response received from webhook server: %v", e.Err)
	default:
		return fmt.Sprintf("error setting up webhook request: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a webhook Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var whErr *Error
	return errors.As(err, &whErr) && whErr.Kind == kind
}

// Response is the receiver's answer to a successful call.
type Response struct {
	StatusCode int
	Body       map[string]any
	Raw        []byte
}

type Config struct {
	Endpoint string
	Secret   string
	Timeout  time.Duration
}

// Dispatcher POSTs signed events to a single downstream endpoint.
// Every call is one best-effort attempt; retries are left to the caller.
type Dispatcher struct {
	endpoint   string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher with a configured HTTP client.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dispatcher{
		endpoint: cfg.Endpoint,
		secret:   cfg.Secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Dispatch signs the event with the shared secret and sends it via HTTP POST.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (*Response, error) {
	start := time.Now()

	payload, err := event.Encode()
	if err != nil {
		return nil, err
	}
	signature := SignBytes(payload, d.secret)

	if d.endpoint == "" {
		return nil, &Error{Kind: RequestSetupFailed, EventType: event.Type, Err: errors.New("webhook endpoint not configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: RequestSetupFailed, EventType: event.Type, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("webhook delivery failed",
			"event_type", event.Type,
			"error", err,
			"response_time_ms", time.Since(start).Milliseconds(),
		)
		return nil, &Error{Kind: NoResponse, EventType: event.Type, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: NoResponse, EventType: event.Type, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Warn("webhook rejected",
			"event_type", event.Type,
			"status_code", resp.StatusCode,
			"response_time_ms", time.Since(start).Milliseconds(),
		)
		return nil, &Error{
			Kind:       RemoteRejected,
			EventType:  event.Type,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	out := &Response{StatusCode: resp.StatusCode, Raw: body}
	if len(body) > 0 {
		// Receivers are free to answer with non-JSON bodies.
		_ = json.Unmarshal(body, &out.Body)
	}

	d.logger.Info("webhook delivered",
		"event_type", event.Type,
		"status_code", resp.StatusCode,
		"response_time_ms", time.Since(start).Milliseconds(),
	)

	return out, nil
}
