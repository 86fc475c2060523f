package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// hotSwap holds an http middleware that a background loop replaces as its
// stored configuration changes.
type hotSwap struct {
	current  atomic.Pointer[func(http.Handler) http.Handler]
	interval time.Duration
	build    func(ctx context.Context) func(http.Handler) http.Handler
}

func (h *hotSwap) refresh(ctx context.Context) {
	mw := h.build(ctx)
	h.current.Store(&mw)
}

func (h *hotSwap) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		(*h.current.Load())(next).ServeHTTP(w, r)
	})
}

// run rebuilds on every tick until ctx is done. A non-positive interval
// disables reloading.
func (h *hotSwap) run(ctx context.Context) {
	if h.interval <= 0 {
		return
	}
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.refresh(ctx)
		}
	}
}
