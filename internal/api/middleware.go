package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"futures-core/internal/monitor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// visitorTable tracks one token-bucket limiter per client IP. Entries
// unseen for longer than ttl are swept so the map stays bounded.
type visitorTable struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	ttl      time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newVisitorTable(rps rate.Limit, burst int, ttl time.Duration) *visitorTable {
	t := &visitorTable{
		visitors: make(map[string]*visitor),
		rps:      rps,
		burst:    burst,
		ttl:      ttl,
	}
	go t.sweep()
	return t
}

func (t *visitorTable) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (t *visitorTable) sweep() {
	ticker := time.NewTicker(t.ttl)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-t.ttl)
		t.mu.Lock()
		for ip, v := range t.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(t.visitors, ip)
			}
		}
		t.mu.Unlock()
	}
}

// RateLimitMiddleware enforces a per-IP request budget on the dashboard API.
func RateLimitMiddleware(rps rate.Limit, burst int) gin.HandlerFunc {
	table := newVisitorTable(rps, burst, 5*time.Minute)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !table.allow(ip) {
			log.Printf("[RATE_LIMIT] IP %s exceeded rate limit", ip)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate limit exceeded",
				"message": "too many requests, please slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CORSMiddleware lets the dashboard UI call the API from another origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware tags every request with an ID for log correlation.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("RequestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// TimeoutMiddleware caps how long a single request may run.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		panicked := make(chan any, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicked <- p
				}
			}()
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
		case p := <-panicked:
			log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, p)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		case <-ctx.Done():
			log.Printf("[TIMEOUT] %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{"error": "request timeout"})
		}
	}
}

// RequestLogger logs method, path, status and latency, and feeds the
// API latency histogram when metrics are attached.
func RequestLogger(metrics *monitor.SystemMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if metrics != nil {
			metrics.IncrementAPI()
			metrics.APILatency.RecordDuration(latency)
			if status >= 400 {
				metrics.IncrementAPIErrors()
			}
		}

		id := c.GetString("RequestID")
		if len(id) > 8 {
			id = id[:8]
		}
		log.Printf("[API] %s | %s %s | %d | %v | %s", id, method, path, status, latency, c.ClientIP())
	}
}
