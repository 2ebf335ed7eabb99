package web

// limiter.go bounds the number of uploads parsed at once. A request waits
// up to maxWait for a slot and then fails with ErrTooManyUploads. Shutdown
// drains the limiter so in-flight previews finish.

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyUploads is returned when no slot frees up within the wait time.
var ErrTooManyUploads = errors.New("too many concurrent uploads")

type uploadLimiter struct {
	sem     *semaphore.Weighted
	size    int64
	maxWait time.Duration
	active  atomic.Int64
}

func newUploadLimiter(maxConcurrent int, maxWait time.Duration) *uploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &uploadLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		size:    int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// acquire waits for a slot. The caller must release it.
func (l *uploadLimiter) acquire(ctx context.Context) error {
	waitCtx := ctx
	if l.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyUploads
	}
	l.active.Add(1)
	return nil
}

func (l *uploadLimiter) release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// Active returns the number of uploads holding a slot.
func (l *uploadLimiter) Active() int { return int(l.active.Load()) }

// drain blocks until every slot is free or ctx is done. New uploads wait
// behind it.
func (l *uploadLimiter) drain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.size); err != nil {
		return err
	}
	l.sem.Release(l.size)
	return nil
}

// middleware holds a slot for the duration of the request.
func (l *uploadLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := l.acquire(r.Context()); err != nil {
			w.Header().Set("Retry-After", "5")
			respondError(w, r, err)
			return
		}
		defer l.release()
		next.ServeHTTP(w, r)
	})
}
