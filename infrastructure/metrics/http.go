package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Collect is chi middleware counting admin requests. The scrape endpoint itself is skipped.
func (c *Collectors) Collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			if r.URL.Path == "/metrics" {
				return
			}
			c.adminRequests.WithLabelValues(strconv.Itoa(ww.Status()), routePattern(r)).Inc()
		}()
		next.ServeHTTP(ww, r)
	})
}

// routePattern keeps label cardinality bounded by preferring the matched chi route.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
