package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUploadLimiter_AcquireRelease(t *testing.T) {
	l := newUploadLimiter(2, 10*time.Millisecond)
	ctx := context.Background()

	if err := l.acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if got := l.Active(); got != 2 {
		t.Errorf("Active() = %d, want 2", got)
	}

	if err := l.acquire(ctx); !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("third acquire error = %v, want ErrTooManyUploads", err)
	}

	l.release()
	if err := l.acquire(ctx); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
	l.release()
	l.release()
	if got := l.Active(); got != 0 {
		t.Errorf("Active() = %d, want 0", got)
	}
}

func TestUploadLimiter_CancelledContext(t *testing.T) {
	l := newUploadLimiter(1, time.Second)
	if err := l.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("acquire error = %v, want context.Canceled", err)
	}
}

func TestUploadLimiter_Drain(t *testing.T) {
	l := newUploadLimiter(2, time.Second)
	if err := l.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- l.drain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("drain returned while an upload was active")
	case <-time.After(20 * time.Millisecond):
	}

	l.release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("drain error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("drain did not return after release")
	}
}

func TestUploadLimiter_Middleware(t *testing.T) {
	l := newUploadLimiter(1, time.Millisecond)
	if err := l.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.release()

	h := l.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without a slot")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/preview", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
}
