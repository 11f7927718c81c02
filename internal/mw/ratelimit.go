package mw

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter 是按 IP+路由分桶的令牌桶限速器，空闲超过 idle 的桶由后台 goroutine 回收。
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	r       rate.Limit
	burst   int
	idle    time.Duration
	skip    map[string]struct{}

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLimiter 创建限速器并启动回收 goroutine，调用方负责 Stop。
// skip 中的路由不限速（例如 /ws 自带单连接限速）。
func NewLimiter(perSecond float64, burst int, idle time.Duration, skip ...string) *Limiter {
	if idle <= 0 {
		idle = 2 * time.Minute
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		r:       rate.Limit(perSecond),
		burst:   burst,
		idle:    idle,
		skip:    make(map[string]struct{}, len(skip)),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, p := range skip {
		l.skip[p] = struct{}{}
	}
	go l.gc()
	return l
}

func (l *Limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.r, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.seen) > l.idle {
			delete(l.buckets, k)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) gc() {
	defer close(l.done)
	ticker := time.NewTicker(l.idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// Stop 停止回收 goroutine 并等待其退出，可重复调用。
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// Middleware 返回 gin 中间件，超限时返回 429 并带 Retry-After。
func (l *Limiter) Middleware() gin.HandlerFunc {
	retryAfter := "1"
	if l.r > 0 && l.r < 1 {
		retryAfter = strconv.Itoa(int(1/float64(l.r)) + 1)
	}
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, ok := l.skip[path]; ok {
			c.Next()
			return
		}
		ip := clientIP(c.Request.RemoteAddr)
		if !l.allow(ip+"|"+path, time.Now()) {
			metrics.RateLimited.WithLabelValues(path).Inc()
			log.Debug().Str("client_ip", ip).Str("path", path).Msg("rate limited")
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(429, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
