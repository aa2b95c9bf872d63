package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/cors"
)

var localhostOrigin = regexp.MustCompile(`^https?://localhost:\d+$`)

// CORS allows the configured origins plus any localhost port. Preflight
// requests are answered here and never reach the router.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if _, ok := allowed[origin]; ok {
				return true
			}
			return localhostOrigin.MatchString(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
