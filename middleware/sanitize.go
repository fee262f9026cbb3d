package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	scriptTagRegex = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	iframeTagRegex = regexp.MustCompile(`(?is)<iframe\b.*?</iframe>`)
	jsURIRegex     = regexp.MustCompile(`(?i)javascript:`)
	eventAttrRegex = regexp.MustCompile(`(?i)on\w+\s*=`)
	exprRegex      = regexp.MustCompile(`(?i)expression\s*\(`)
)

func sanitizeString(s string) string {
	s = scriptTagRegex.ReplaceAllString(s, "")
	s = iframeTagRegex.ReplaceAllString(s, "")
	s = jsURIRegex.ReplaceAllString(s, "")
	s = eventAttrRegex.ReplaceAllString(s, "")
	s = exprRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func sanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return sanitizeString(t)
	case map[string]interface{}:
		for k, val := range t {
			t[k] = sanitizeValue(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = sanitizeValue(val)
		}
		return t
	default:
		return v
	}
}

// SanitizeInput strips script/iframe tags, javascript: URIs and inline event
// handlers from JSON request bodies and query parameters before any handler
// sees them.
func SanitizeInput() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Query parameters
		q := c.Request.URL.Query()
		changed := false
		for key, vals := range q {
			for i, v := range vals {
				clean := sanitizeString(v)
				if clean != v {
					vals[i] = clean
					changed = true
				}
			}
			q[key] = vals
		}
		if changed {
			c.Request.URL.RawQuery = q.Encode()
		}

		// JSON bodies only; anything else passes through untouched.
		if c.Request.Body != nil && strings.Contains(c.ContentType(), "application/json") {
			body, err := io.ReadAll(c.Request.Body)
			if err == nil && len(body) > 0 {
				var payload interface{}
				if json.Unmarshal(body, &payload) == nil {
					if clean, err := json.Marshal(sanitizeValue(payload)); err == nil {
						body = clean
					}
				}
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		c.Next()
	}
}
