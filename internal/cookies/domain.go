package cookies

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ParseError is reported when a redirect location cannot be turned into a
// registrable domain. Callers treat it as "nothing to rewrite".
type ParseError struct {
	Location string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing redirect location %q: %v", e.Location, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RegistrableDomain returns the registrable domain (eTLD+1) of the host in
// location, e.g. "app.tenant.example.co.uk" gives "example.co.uk". Hosts that
// are themselves a public suffix, IP literals and single-label names such as
// "localhost" are returned unchanged.
func RegistrableDomain(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", &ParseError{Location: location, Err: err}
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", &ParseError{Location: location, Err: fmt.Errorf("no host")}
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return domain, nil
}

// RewriteDomain replaces the value of every "Domain=.<x>" attribute in a single
// Set-Cookie line with ".<domain>". The cookie pair and all other attributes
// are kept byte for byte. It reports whether anything changed.
func RewriteDomain(line, domain string) (string, bool) {
	parts := strings.Split(line, ";")
	changed := false

	// parts[0] is the cookie name=value pair, never an attribute.
	for i := 1; i < len(parts); i++ {
		attr := parts[i]
		trimmed := strings.TrimLeft(attr, " \t")
		lead := attr[:len(attr)-len(trimmed)]

		name, value, ok := strings.Cut(trimmed, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "domain") {
			continue
		}
		value = strings.TrimSpace(value)
		if !strings.HasPrefix(value, ".") {
			continue
		}

		rewritten := lead + name + "=." + domain
		if rewritten != attr {
			parts[i] = rewritten
			changed = true
		}
	}

	if !changed {
		return line, false
	}
	return strings.Join(parts, ";"), true
}
