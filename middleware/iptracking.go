package middleware

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	"claims-api/services"

	"github.com/gin-gonic/gin"
)

const (
	ctxRealIP     = "realIP"
	ctxIPLocation = "ipLocation"
)

// ResolveClientIP extracts the client's address, preferring proxy headers over
// the transport peer. Loopback peers in development are swapped for the host's
// externally visible address when one can be found.
func ResolveClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		// May contain multiple IPs; take the first one.
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := c.GetHeader("X-Real-Ip"); realIP != "" {
		return realIP
	}
	if clientIP := c.GetHeader("X-Client-Ip"); clientIP != "" {
		return clientIP
	}

	ip := c.ClientIP()
	if ip == "" {
		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
			ip = host
		}
	}

	if ip == "::1" || ip == "::ffff:127.0.0.1" || ip == "127.0.0.1" {
		if os.Getenv("ENVIRONMENT") != "production" {
			if external := services.Geo.ExternalIP(c.Request.Context()); external != "" {
				log.Printf("Using external public IP %s instead of localhost", external)
				return external
			}
		}
		return "127.0.0.1"
	}
	ip = strings.TrimPrefix(ip, "::ffff:")
	if ip == "" {
		ip = "127.0.0.1"
	}
	return ip
}

// criticalPath reports whether location must be resolved before the handler
// runs. Only the two writes that persist the location wait for it; admin
// reads over the same resources get the async warm-up like everything else.
func criticalPath(method, path string) bool {
	if method != http.MethodPost {
		return false
	}
	return strings.HasSuffix(path, "/claims") || strings.HasSuffix(path, "/drafts/auto-save")
}

// TrackIPAndLocation records the caller's IP and best-effort location in the
// request context. Critical routes resolve the location synchronously (the
// resolver has its own bounded timeout); everything else gets a placeholder
// and a detached lookup that warms the cache.
func TrackIPAndLocation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ResolveClientIP(c)
		c.Set(ctxRealIP, ip)

		if criticalPath(c.Request.Method, c.Request.URL.Path) {
			c.Set(ctxIPLocation, services.Geo.ResolveLocation(c.Request.Context(), ip))
		} else {
			if ip == "127.0.0.1" {
				c.Set(ctxIPLocation, "Local")
			} else {
				c.Set(ctxIPLocation, "Resolving...")
			}
			go func(ip string) {
				// Detached from the request; its context ends when the
				// response does.
				services.Geo.ResolveLocation(context.Background(), ip)
			}(ip)
		}

		c.Next()
	}
}

// GetRealIP reads the tracked IP from the request context.
func GetRealIP(c *gin.Context) string {
	if v, ok := c.Get(ctxRealIP); ok {
		if ip, ok := v.(string); ok && ip != "" {
			return ip
		}
	}
	return "127.0.0.1"
}

// GetIPLocation reads the tracked location from the request context. May be a
// placeholder when the request skipped synchronous resolution.
func GetIPLocation(c *gin.Context) string {
	if v, ok := c.Get(ctxIPLocation); ok {
		if loc, ok := v.(string); ok {
			return loc
		}
	}
	return ""
}
