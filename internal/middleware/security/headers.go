package security

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Directive is one Content-Security-Policy entry.
type Directive struct {
	Name    string
	Sources []string
}

// HeadersConfig is the fixed header set of the shell and the API.
type HeadersConfig struct {
	Policy []Directive
	// HSTSMaxAge of zero disables Strict-Transport-Security.
	HSTSMaxAge int
	Static     map[string]string
}

// DefaultHeadersConfig returns the shell's headers. connectOrigins are
// reduced to scheme://host and added to connect-src so the page can reach
// the identity provider.
func DefaultHeadersConfig(connectOrigins ...string) HeadersConfig {
	connect := []string{"'self'"}
	for _, o := range connectOrigins {
		if origin := originOf(o); origin != "" {
			connect = append(connect, origin)
		}
	}
	return HeadersConfig{
		Policy: []Directive{
			{"default-src", []string{"'self'"}},
			{"script-src", []string{"'self'"}},
			{"style-src", []string{"'self'"}},
			{"img-src", []string{"'self'", "data:"}},
			{"connect-src", connect},
			{"worker-src", []string{"'self'"}},
			{"manifest-src", []string{"'self'"}},
			{"object-src", []string{"'none'"}},
			{"frame-ancestors", []string{"'none'"}},
			{"base-uri", []string{"'self'"}},
			{"form-action", []string{"'self'"}},
		},
		HSTSMaxAge: 31536000,
		Static: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
	}
}

func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// CSP renders the policy in declaration order.
func (c HeadersConfig) CSP() string {
	parts := make([]string, 0, len(c.Policy))
	for _, d := range c.Policy {
		parts = append(parts, d.Name+" "+strings.Join(d.Sources, " "))
	}
	return strings.Join(parts, "; ")
}

type HeadersMiddleware struct {
	csp    string
	hsts   string
	static map[string]string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{csp: config.CSP(), static: config.Static}
	if config.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for k, v := range h.static {
			headers.Set(k, v)
		}
		if h.csp != "" {
			headers.Set("Content-Security-Policy", h.csp)
		}
		if h.hsts != "" && isHTTPS(r) {
			headers.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// isHTTPS also trusts the proxy's X-Forwarded-Proto; the header only
// tightens the response.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// NoCache marks responses that must be revalidated on every load, such as
// the worker script and the runtime config.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}
