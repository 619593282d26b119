package fetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter ограничивает число одновременных запросов к хосту и их частоту
// в минуту. Слот занят до вызова release.
type RateLimiter struct {
	maxConcurrent int
	rpm           int
	hosts         map[string]*hostLimiter
	mu            sync.Mutex
	now           func() time.Time
}

type hostLimiter struct {
	sem         chan struct{}
	windowStart time.Time
	requests    int
	mu          sync.Mutex
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		maxConcurrent: maxConcurrent,
		rpm:           rpm,
		hosts:         make(map[string]*hostLimiter),
		now:           time.Now,
	}
}

func (rl *RateLimiter) host(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.hosts[host]
	if !ok {
		limiter = &hostLimiter{sem: make(chan struct{}, rl.maxConcurrent)}
		rl.hosts[host] = limiter
	}
	return limiter
}

// Acquire ждёт свободный слот и окно RPM. Возвращённую функцию нужно вызвать
// после завершения запроса.
func (rl *RateLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	limiter := rl.host(host)

	select {
	case limiter.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() { once.Do(func() { <-limiter.sem }) }

	if err := rl.throttle(ctx, limiter); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (rl *RateLimiter) throttle(ctx context.Context, limiter *hostLimiter) error {
	if rl.rpm <= 0 {
		return nil
	}

	for {
		limiter.mu.Lock()
		now := rl.now()
		if now.Sub(limiter.windowStart) >= time.Minute {
			limiter.windowStart = now
			limiter.requests = 0
		}
		if limiter.requests < rl.rpm {
			limiter.requests++
			limiter.mu.Unlock()
			return nil
		}
		wait := time.Minute - now.Sub(limiter.windowStart)
		limiter.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
