package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 每个 IP 一个令牌桶，空闲超过 ttl 的条目被清理
type IPRateLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	rps        rate.Limit
	burst      int
	ttl        time.Duration
	// 清理间隔，避免每次请求都遍历全部条目
	sweepEvery time.Duration
	nextSweep  time.Time
	now        func() time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors:   make(map[string]*visitor),
		rps:        rate.Limit(rps),
		burst:      burst,
		ttl:        10 * time.Minute,
		sweepEvery: time.Minute,
		now:        time.Now,
	}
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if !now.Before(rl.nextSweep) {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.nextSweep = now.Add(rl.sweepEvery)
	}
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit 只限制写请求，GET/HEAD 直接放行；onLimited 负责写出 429 响应
func RateLimit(rl *IPRateLimiter, onLimited func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || c.Request.Method == "GET" || c.Request.Method == "HEAD" {
			c.Next()
			return
		}
		if !rl.Allow(c.ClientIP()) {
			onLimited(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
