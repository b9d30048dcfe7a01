package server

import "net/http"

// OriginChecker gates websocket upgrades. With no configured origins
// every origin is accepted, which matches a gateway deployed behind the
// application's own ingress.
type OriginChecker struct {
	allowedOrigins map[string]struct{}
}

func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = struct{}{}
	}

	return &OriginChecker{
		allowedOrigins: origins,
	}
}

func (c *OriginChecker) Check(r *http.Request) bool {
	if len(c.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	_, ok := c.allowedOrigins[origin]

	return ok
}
