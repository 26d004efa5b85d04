package engine

import (
	"net/url"
	"strings"
)

// originOf returns scheme://host for an absolute URL.
func originOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// IsTrustedOrigin reports whether origin matches the service's own origin or
// one of the trusted origins. Trusted entries may use a leading "*." host
// wildcard, e.g. "https://*.example.com".
func (e *Engine) IsTrustedOrigin(origin string) bool {
	origin = strings.ToLower(strings.TrimSuffix(origin, "/"))
	if origin == "" {
		return false
	}
	if own, ok := originOf(e.cfg.BaseURL); ok && own == origin {
		return true
	}
	for _, trusted := range e.cfg.TrustedOrigins {
		trusted = strings.ToLower(strings.TrimSuffix(trusted, "/"))
		if trusted == origin {
			return true
		}
		if matchWildcardOrigin(trusted, origin) {
			return true
		}
	}
	return false
}

func matchWildcardOrigin(pattern, origin string) bool {
	scheme, host, ok := strings.Cut(pattern, "://*.")
	if !ok {
		return false
	}
	prefix := scheme + "://"
	if !strings.HasPrefix(origin, prefix) {
		return false
	}
	return strings.HasSuffix(origin[len(prefix):], "."+host)
}

// isTrustedRedirect reports whether a callback or redirect target may be
// used. Relative paths stay on this service and are always allowed.
func (e *Engine) isTrustedRedirect(target string) bool {
	if target == "" {
		return true
	}
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\") {
		return true
	}
	origin, ok := originOf(target)
	if !ok {
		return false
	}
	return e.IsTrustedOrigin(origin)
}
