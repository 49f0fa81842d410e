package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy 指数退避重试：BaseDelay, BaseDelay*Multiplier, ...
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Retryable   func(error) bool // nil 表示所有错误都重试
}

// DefaultPolicy 3 次尝试，1s 起步，每次翻倍
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2, Retryable: Retryable}
}

// Do 调用 fn 直到成功、遇到不可重试错误、次数耗尽或 ctx 结束，返回最后一次错误
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := p.BaseDelay

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}
		if i == attempts {
			break
		}
		if p.Retryable != nil && !p.Retryable(err) {
			break
		}

		log.Debug().Err(err).Int("attempt", i).Dur("delay", delay).Msg("request failed, retrying")
		if !sleepCtx(ctx, delay) {
			return errors.Join(err, ctx.Err())
		}
		delay = time.Duration(float64(delay) * mult)
		if p.MaxDelay > 0 {
			delay = MinDuration(delay, p.MaxDelay)
		}
	}
	return err
}

// Retryable 429、5xx 与网络错误重试；其余 HTTP 状态码不重试。ctx 结束由 Policy.Do 自己判断。
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Temporary()
	}
	return true
}
