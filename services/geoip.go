package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Successful and failed lookups are both cached per IP for a day.
	geoCacheTTL = 24 * time.Hour
	// Repeat lookups of the same IP are throttled to one per cooldown window;
	// throttled callers get the last cached value or "Unknown".
	geoLookupCooldown = 5 * time.Second
	geoLookupTimeout  = 5 * time.Second
	externalIPTimeout = 3 * time.Second
)

// geoCache stores resolved locations keyed by IP.
type geoCache interface {
	Get(ctx context.Context, ip string) (string, bool)
	Set(ctx context.Context, ip, location string)
}

type cachedLocation struct {
	location  string
	timestamp time.Time
}

// memoryGeoCache is the default per-process cache.
type memoryGeoCache struct {
	mu      sync.Mutex
	entries map[string]cachedLocation
	now     func() time.Time
}

func newMemoryGeoCache(now func() time.Time) *memoryGeoCache {
	return &memoryGeoCache{entries: make(map[string]cachedLocation), now: now}
}

func (m *memoryGeoCache) Get(_ context.Context, ip string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[ip]
	if !ok {
		return "", false
	}
	if m.now().Sub(e.timestamp) >= geoCacheTTL {
		delete(m.entries, ip)
		return "", false
	}
	return e.location, true
}

func (m *memoryGeoCache) Set(_ context.Context, ip, location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[ip] = cachedLocation{location: location, timestamp: m.now()}
}

// redisGeoCache shares the cache across instances when Redis is configured.
type redisGeoCache struct {
	rdb *redis.Client
}

func (r *redisGeoCache) Get(ctx context.Context, ip string) (string, bool) {
	val, err := r.rdb.Get(ctx, "geo:"+ip).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *redisGeoCache) Set(ctx context.Context, ip, location string) {
	if err := r.rdb.Set(ctx, "geo:"+ip, location, geoCacheTTL).Err(); err != nil {
		log.Printf("geo cache write failed for %s: %v", ip, err)
	}
}

// GeoResolver turns client IPs into best-effort human-readable locations.
// Lookups hit ipapi.co with a bounded timeout; results are cached and
// rate-limited per IP so a burst of auto-saves never floods the service.
type GeoResolver struct {
	client    *http.Client
	cache     geoCache
	ipapiBase string

	mu          sync.Mutex
	lastRequest map[string]time.Time

	now func() time.Time
}

// Geo is the process-wide resolver, set up by InitGeo at startup. Tests build
// their own with NewGeoResolver.
var Geo = NewGeoResolver(nil)

// InitGeo wires the shared resolver, backing the cache with Redis when a
// client is available.
func InitGeo(rdb *redis.Client) {
	Geo = NewGeoResolver(rdb)
}

func NewGeoResolver(rdb *redis.Client) *GeoResolver {
	now := time.Now
	r := &GeoResolver{
		client:      &http.Client{Timeout: geoLookupTimeout},
		ipapiBase:   "https://ipapi.co",
		lastRequest: make(map[string]time.Time),
		now:         now,
	}
	if rdb != nil {
		r.cache = &redisGeoCache{rdb: rdb}
	} else {
		r.cache = newMemoryGeoCache(func() time.Time { return r.now() })
	}
	return r
}

type ipapiResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
}

// ResolveLocation returns a short human-readable location for an IP. Private
// and loopback ranges short-circuit without a lookup. Never returns an error:
// failures degrade to "Unknown".
func (g *GeoResolver) ResolveLocation(ctx context.Context, ip string) string {
	if strings.HasPrefix(ip, "192.168.") || strings.HasPrefix(ip, "10.") || strings.HasPrefix(ip, "172.") {
		return "Private Network"
	}
	if ip == "127.0.0.1" || ip == "localhost" || ip == "::1" {
		return "Local Network"
	}

	if loc, ok := g.cache.Get(ctx, ip); ok {
		return loc
	}

	// Throttle repeat lookups of the same IP. Entries past the cooldown carry
	// no information anymore, so they are dropped here to keep the map bounded
	// by the set of IPs seen within one cooldown window.
	g.mu.Lock()
	now := g.now()
	for addr, at := range g.lastRequest {
		if now.Sub(at) >= geoLookupCooldown {
			delete(g.lastRequest, addr)
		}
	}
	if last, seen := g.lastRequest[ip]; seen && now.Sub(last) < geoLookupCooldown {
		g.mu.Unlock()
		if loc, ok := g.cache.Get(ctx, ip); ok {
			return loc
		}
		return "Unknown"
	}
	g.lastRequest[ip] = now
	g.mu.Unlock()

	location := g.lookup(ctx, ip)

	// Cache failures too, so a dead upstream is not hammered.
	g.cache.Set(ctx, ip, location)
	return location
}

func (g *GeoResolver) lookup(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, geoLookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", g.ipapiBase, ip), nil)
	if err != nil {
		return "Unknown"
	}
	resp, err := g.client.Do(req)
	if err != nil {
		log.Printf("IP geolocation error for %s: %v", ip, err)
		return "Unknown"
	}
	defer resp.Body.Close()

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.City == "" {
		return "Unknown"
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{body.City, body.Region, body.CountryName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// externalIPServices are probed in order when the server only sees a loopback
// peer address (local development behind no proxy).
var externalIPServices = []string{
	"https://api.ipify.org?format=json",
	"https://ipinfo.io/json",
	"https://httpbin.org/ip",
}

// ExternalIP asks public echo services for this host's outward-facing address.
// Returns "" when none respond in time.
func (g *GeoResolver) ExternalIP(ctx context.Context) string {
	for _, svc := range externalIPServices {
		ctx, cancel := context.WithTimeout(ctx, externalIPTimeout)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc, nil)
		if err != nil {
			cancel()
			continue
		}
		resp, err := g.client.Do(req)
		if err != nil {
			cancel()
			continue
		}
		var body struct {
			IP     string `json:"ip"`
			Origin string `json:"origin"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		cancel()
		if err != nil {
			continue
		}
		if body.IP != "" {
			return body.IP
		}
		if body.Origin != "" {
			return body.Origin
		}
	}
	return ""
}
