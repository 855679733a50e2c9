package crawlers

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 抓取礼貌性限速(令牌桶)
// delay<=0 时不做任何等待
type Limiter struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// NewLimiter 创建限速器,相邻两次请求至少间隔delay
func NewLimiter(delay time.Duration) *Limiter {
	l := &Limiter{delay: delay}
	if delay > 0 {
		l.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return l
}

// Wait 阻塞到允许发出下一次请求
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Delay 返回配置的间隔
func (l *Limiter) Delay() time.Duration {
	if l == nil {
		return 0
	}
	return l.delay
}
