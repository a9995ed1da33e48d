package github

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/halverson/starwatch/internal/crawler"
	"github.com/halverson/starwatch/internal/metrics"
)

// recordingTransport wraps a RoundTripper and keeps the status code and
// quota headers of the most recent response. The GraphQL layer hides the
// raw response, so error classification reads them from here.
type recordingTransport struct {
	base http.RoundTripper

	mu         sync.Mutex
	lastStatus int
	lastRate   *crawler.RateBudgetSnapshot
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.lastStatus = 0
		t.lastRate = nil
		metrics.ObserveAPIRequest(0)
		return resp, err
	}
	t.lastStatus = resp.StatusCode
	t.lastRate = rateFromHeaders(resp.Header)
	metrics.ObserveAPIRequest(resp.StatusCode)
	return resp, nil
}

func (t *recordingTransport) last() (int, *crawler.RateBudgetSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastStatus, t.lastRate
}

// rateFromHeaders parses the quota headers that accompany every API
// response. They back up the in-query rateLimit block when the payload
// does not carry one.
func rateFromHeaders(h http.Header) *crawler.RateBudgetSnapshot {
	remaining := h.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	value, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}
	snap := &crawler.RateBudgetSnapshot{Remaining: value}
	if limit := h.Get("X-RateLimit-Limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			snap.Limit = v
		}
	}
	if reset := h.Get("X-RateLimit-Reset"); reset != "" {
		if v, err := strconv.ParseInt(reset, 10, 64); err == nil {
			snap.ResetAt = time.Unix(v, 0).UTC()
		}
	}
	return snap
}
