package crawlers

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 全局请求节流器
// 所有出站网络操作(HTTP获取、API探测、浏览器渲染)在发起前都必须
// Wait,保证任意两次请求之间至少间隔delay秒。间隔是全局的,不是
// 按item计算的。
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer 创建节流器,delay为请求间隔(秒)
// delay<=0时不限速
func NewPacer(delay float64) *Pacer {
	if delay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(time.Duration(delay*float64(time.Second))), 1),
	}
}

// Wait 阻塞直到允许发起下一次请求,或context取消
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
