package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// Throttle caps the total request rate through an endpoint. Used on the
// simulation route, where each request fans out to the inference
// service.
func Throttle(perSecond float64, burst int) func(next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondWithError(w, http.StatusTooManyRequests, "Too many simulation requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
