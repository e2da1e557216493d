package middleware

import "net/http"

// NoStore forbids caching of API responses. Screening outcomes and
// participant answers are personal data and must never land in a shared
// cache or survive in the browser after logout.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
