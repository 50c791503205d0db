package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// corsRule matches an Origin header. "*" allows everything, "*.example.com"
// allows example.com and its subdomains, anything else is an exact host match.
type corsRule struct {
	any    bool
	suffix string
	host   string
	scheme string
}

func parseCORSRules(origins []string) []corsRule {
	var rules []corsRule
	for _, raw := range origins {
		raw = strings.ToLower(strings.TrimSpace(raw))
		switch {
		case raw == "":
		case raw == "*":
			rules = append(rules, corsRule{any: true})
		case strings.HasPrefix(raw, "*."):
			rules = append(rules, corsRule{suffix: strings.TrimPrefix(raw, "*.")})
		default:
			r := corsRule{host: raw}
			if u, err := url.Parse(raw); err == nil && u.Host != "" {
				r.host = u.Host
				r.scheme = u.Scheme
			}
			rules = append(rules, r)
		}
	}
	return rules
}

func (r corsRule) match(origin *url.URL) bool {
	host := strings.ToLower(origin.Host)
	hostname := strings.ToLower(origin.Hostname())
	switch {
	case r.any:
		return true
	case r.suffix != "":
		return hostname == r.suffix || strings.HasSuffix(hostname, "."+r.suffix)
	default:
		if r.scheme != "" && r.scheme != strings.ToLower(origin.Scheme) {
			return false
		}
		return host == r.host || hostname == r.host
	}
}

// newCORS only answers browsers whose origin is allowed, preflights from
// other origins are rejected.
func newCORS(origins []string) gin.HandlerFunc {
	rules := parseCORSRules(origins)

	return func(ctx *gin.Context) {
		origin := strings.TrimSpace(ctx.Request.Header.Get("Origin"))
		allowed := false
		if origin != "" {
			if u, err := url.Parse(origin); err == nil && u.Host != "" {
				for _, r := range rules {
					if r.match(u) {
						allowed = true
						break
					}
				}
			}
		}

		if allowed {
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With")
			ctx.Header("Access-Control-Max-Age", "86400")
			ctx.Header("Vary", "Origin")

			if ctx.Request.Method == http.MethodOptions {
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		} else if origin != "" && ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}

		ctx.Next()
	}
}
