package cookies

import (
	"log/slog"
	"net/http"
	"strings"
)

// Rewriter widens session cookies to the registrable domain of the redirect
// target on social callback and session retrieval responses, so one sign-in
// is shared by every subdomain of the tenant's site.
type Rewriter struct {
	basePath string
	logger   *slog.Logger
}

// NewRewriter creates a rewriter for auth routes mounted under basePath.
func NewRewriter(basePath string, logger *slog.Logger) *Rewriter {
	return &Rewriter{basePath: strings.TrimSuffix(basePath, "/"), logger: logger}
}

// Matches reports whether responses for path are candidates for rewriting.
func (rw *Rewriter) Matches(path string) bool {
	return strings.HasPrefix(path, rw.basePath+"/callback/") || path == rw.basePath+"/get-session"
}

// Apply rewrites the Set-Cookie headers in h against its Location header.
// Missing headers or an unparseable location leave h untouched.
func (rw *Rewriter) Apply(h http.Header) {
	location := h.Get("Location")
	if location == "" {
		return
	}

	cookies := h.Values("Set-Cookie")
	if len(cookies) == 0 {
		return
	}

	domain, err := RegistrableDomain(location)
	if err != nil {
		rw.logger.Debug("cookie domain rewrite skipped", "error", err)
		return
	}

	out := make([]string, len(cookies))
	changed := false
	for i, line := range cookies {
		var c bool
		out[i], c = RewriteDomain(line, domain)
		changed = changed || c
	}
	if !changed {
		return
	}

	h.Del("Set-Cookie")
	for _, line := range out {
		h.Add("Set-Cookie", line)
	}
	rw.logger.Debug("cookie domain rewritten", "domain", domain, "cookies", len(out))
}

// Middleware applies the rewrite after the wrapped handler has produced its
// headers and before they are written.
func (rw *Rewriter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rw.Matches(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		hw := &headerWriter{ResponseWriter: w, apply: rw.Apply}
		next.ServeHTTP(hw, r)
		hw.flushHeader()
	})
}

// headerWriter runs apply exactly once, right before headers are sent.
type headerWriter struct {
	http.ResponseWriter
	apply       func(http.Header)
	wroteHeader bool
}

func (w *headerWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.apply(w.Header())
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) flushHeader() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}

func (w *headerWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
