//go:build load

// Load tests excluded from regular CI runs.
// Run with: go test -tags load -count=1 -timeout 60s ./internal/middleware/
package middleware_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aruna-bi/aruna/internal/middleware"
)

func chatHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func chatRequest(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/agent/chat", strings.NewReader(`{}`))
	req.RemoteAddr = ip
	return req
}

// TestRateLimitSustainedLoad fires 1000 chat requests from one client at a
// limiter with 10 tokens refilling at 10/s; most must be rejected.
func TestRateLimitSustainedLoad(t *testing.T) {
	handler := middleware.NewRateLimiter(10, 10).Handler(chatHandler())

	const goroutines = 10
	const reqsPerGoroutine = 100

	var ok, limited atomic.Int64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range reqsPerGoroutine {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, chatRequest("10.0.0.1:5000"))
				switch rec.Code {
				case http.StatusOK:
					ok.Add(1)
				case http.StatusTooManyRequests:
					limited.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	total := ok.Load() + limited.Load()
	limitedPct := float64(limited.Load()) / float64(total) * 100
	t.Logf("total=%d ok=%d limited=%d (%.1f%% rejected)", total, ok.Load(), limited.Load(), limitedPct)
	if limitedPct < 80 {
		t.Errorf("expected >80%% rate-limited under sustained load, got %.1f%%", limitedPct)
	}
}

// TestRateLimitBurstAbsorption verifies burst-size concurrent requests all
// pass and the next one is rejected.
func TestRateLimitBurstAbsorption(t *testing.T) {
	const burst = 50
	handler := middleware.NewRateLimiter(1, burst).Handler(chatHandler())

	var ok atomic.Int64
	var wg sync.WaitGroup
	wg.Add(burst)
	for range burst {
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, chatRequest("10.0.0.1:5000"))
			if rec.Code == http.StatusOK {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != burst {
		t.Errorf("expected all %d burst requests to succeed, got %d", burst, ok.Load())
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, chatRequest("10.0.0.1:5000"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("burst+1 request: expected 429, got %d", rec.Code)
	}
}

// TestRateLimitCustomKeyIsolation keys buckets by business so one noisy
// business cannot starve another behind the same IP.
func TestRateLimitCustomKeyIsolation(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 3).WithKey(func(r *http.Request) string {
		return r.Header.Get("X-Business-ID")
	})
	handler := rl.Handler(chatHandler())

	send := func(biz string, n int) (ok int) {
		for range n {
			req := chatRequest("10.0.0.1:5000")
			req.Header.Set("X-Business-ID", biz)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code == http.StatusOK {
				ok++
			}
		}
		return ok
	}

	if got := send("biz-a", 10); got != 3 {
		t.Errorf("biz-a: expected 3 OK, got %d", got)
	}
	if got := send("biz-b", 3); got != 3 {
		t.Errorf("biz-b: expected independent bucket, got %d OK", got)
	}
}

// TestRateLimitConcurrentBucketCreation sends one request from each of 100
// clients concurrently; all pass and each gets a bucket.
func TestRateLimitConcurrentBucketCreation(t *testing.T) {
	const clients = 100
	rl := middleware.NewRateLimiter(1, 1)
	handler := rl.Handler(chatHandler())

	var ok atomic.Int64
	var wg sync.WaitGroup
	wg.Add(clients)
	for i := range clients {
		go func(idx int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, chatRequest(fmt.Sprintf("10.0.%d.%d:5000", idx/256, idx%256)))
			if rec.Code == http.StatusOK {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if ok.Load() != clients {
		t.Errorf("expected all %d first requests to succeed, got %d", clients, ok.Load())
	}
	if rl.Len() != clients {
		t.Errorf("expected %d buckets, got %d", clients, rl.Len())
	}
}
