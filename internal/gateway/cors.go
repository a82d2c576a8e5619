package gateway

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
)

// AllowedHeaders are the request headers browsers may send.
var AllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// AllowedMethods are the methods browsers may use.
var AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}

// CORSPolicy decides which browser origins may call the API. Requests
// without an Origin header are not browser requests and always pass.
type CORSPolicy struct {
	// Origins are exact origins such as "https://app.leadkit.dev". "*"
	// allows any origin.
	Origins []string
	// SubdomainSuffix admits any subdomain of a domain, e.g.
	// "leadkit.app" admits "https://acme.leadkit.app".
	SubdomainSuffix string
}

// Allowed reports whether origin may call the API.
func (p CORSPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range p.Origins {
		if o == "*" || strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
			return true
		}
	}
	if p.SubdomainSuffix == "" {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	suffix := "." + strings.TrimLeft(strings.TrimPrefix(p.SubdomainSuffix, "*"), ".")
	host := strings.ToLower(u.Hostname())
	return len(host) > len(suffix) && strings.HasSuffix(host, strings.ToLower(suffix))
}

// handler wraps next with CORS response headers. Preflights pass through so
// the gateway can answer them itself.
func (p CORSPolicy) handler(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return p.Allowed(origin)
		},
		AllowedMethods:     AllowedMethods,
		AllowedHeaders:     AllowedHeaders,
		ExposedHeaders:     []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:             300,
		OptionsPassthrough: true,
	})(next)
}
