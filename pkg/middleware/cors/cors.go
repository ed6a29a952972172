package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Options configures cross-origin access for the operator console.
type Options struct {
	// AllowedOrigins lists exact origins. Empty allows any origin without credentials.
	AllowedOrigins []string
	// ExposeHeaders are readable by browser clients, e.g. the request id and
	// the report download filename.
	ExposeHeaders []string
	MaxAge        time.Duration
}

// DefaultExposeHeaders are exposed when Options.ExposeHeaders is empty.
var DefaultExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Authorization, Content-Type, X-Request-ID"
)

// New returns the CORS middleware.
func New(opts Options) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	allowAny := len(origins) == 0

	expose := opts.ExposeHeaders
	if len(expose) == 0 {
		expose = DefaultExposeHeaders
	}
	exposeValue := strings.Join(expose, ", ")

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	maxAgeValue := strconv.Itoa(int(maxAge.Seconds()))

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		switch {
		case allowAny:
			header.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := origins[origin]; ok {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		header.Set("Access-Control-Expose-Headers", exposeValue)

		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Methods", allowMethods)
			header.Set("Access-Control-Allow-Headers", allowHeaders)
			header.Set("Access-Control-Max-Age", maxAgeValue)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
