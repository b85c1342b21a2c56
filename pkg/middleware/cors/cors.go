// Package cors answers browser cross-origin checks for the API.
package cors

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Options lists what cross-origin callers may do. Zero fields fall back to
// the defaults used by the registration API.
type Options struct {
	// AllowedOrigins is matched ignoring a trailing slash. Empty allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAgeSeconds  int
}

var (
	defaultMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	defaultExposed = []string{"X-Request-ID", "Content-Disposition"}
)

// New returns the CORS middleware. Preflight requests (OPTIONS carrying
// Access-Control-Request-Method) are answered with 204 and never reach the
// routes. Credentials are only allowed for explicitly listed origins.
func New(opts Options) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		origins[normalize(origin)] = struct{}{}
	}
	allowAny := len(origins) == 0

	methods := strings.Join(orDefault(opts.AllowedMethods, defaultMethods), ", ")
	headers := strings.Join(orDefault(opts.AllowedHeaders, defaultHeaders), ", ")
	exposed := strings.Join(orDefault(opts.ExposedHeaders, defaultExposed), ", ")
	maxAge := opts.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = 600
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		_, listed := origins[normalize(origin)]
		switch {
		case origin == "":
		case listed:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		case allowAny:
			h.Set("Access-Control-Allow-Origin", "*")
		default:
			c.Next()
			return
		}
		h.Set("Access-Control-Expose-Headers", exposed)

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
