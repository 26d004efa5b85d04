package engine

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	pwnedPrefixLength = 5
	pwnedDependency   = "pwned"
)

// PwnedChecker looks passwords up in the Have I Been Pwned range API. Only
// the first five characters of the SHA-1 hash leave the process.
type PwnedChecker struct {
	baseURL string
	message string
	client  *http.Client
}

func NewPwnedChecker(baseURL, message string, client *http.Client) *PwnedChecker {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &PwnedChecker{baseURL: baseURL, message: message, client: client}
}

// Compromised reports whether the password appears in a known breach.
func (p *PwnedChecker) Compromised(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hash[:pwnedPrefixLength], hash[pwnedPrefixLength:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("creating range request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", "identity-service")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("querying range api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("range api returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		candidate, count, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok || !strings.EqualFold(candidate, suffix) {
			continue
		}
		// Padding entries carry a zero count.
		return strings.TrimSpace(count) != "0", nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading range response: %w", err)
	}
	return false, nil
}

// checkPwned rejects compromised passwords when the capability is enabled.
// Lookup failures allow the password.
func (e *Engine) checkPwned(ctx context.Context, password string) error {
	if e.pwned == nil {
		return nil
	}
	if e.breaker != nil && !e.breaker.Allow(ctx, pwnedDependency) {
		e.logger.Debug("breached password check skipped, circuit open")
		return nil
	}
	compromised, err := e.pwned.Compromised(ctx, password)
	if err != nil {
		e.logger.Warn("breached password check failed", "error", err)
		if e.breaker != nil {
			e.breaker.Failure(ctx, pwnedDependency)
		}
		return nil
	}
	if e.breaker != nil {
		e.breaker.Success(ctx, pwnedDependency)
	}
	if compromised {
		return apiError(http.StatusBadRequest, "PASSWORD_COMPROMISED", e.pwned.message)
	}
	return nil
}
