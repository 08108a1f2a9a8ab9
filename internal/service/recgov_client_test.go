package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const campsitePayload = `{
  "availability": {
    "campsite_id": "5",
    "availabilities": {
      "2025-06-01T00:00:00Z": "Available",
      "2025-06-02T00:00:00Z": "Reserved"
    }
  }
}`

func quietClient(baseURL string, coolDown time.Duration, opts ...ClientOption) *RecGovClient {
	discard := log.New(io.Discard, "", 0)
	opts = append([]ClientOption{WithClientLoggers(discard, discard)}, opts...)
	return NewRecGovClient(baseURL, coolDown, opts...)
}

func TestRecGovClient_GetSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/camps/availability/campsite/5/all", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, campsitePayload)
	}))
	defer srv.Close()

	c := quietClient(srv.URL+"/", time.Second)
	statuses, err := c.GetSingle(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "Available", statuses["2025-06-01T00:00:00Z"])
	assert.Equal(t, "Reserved", statuses["2025-06-02T00:00:00Z"])
}

func TestRecGovClient_GetSingleRetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, campsitePayload)
	}))
	defer srv.Close()

	coolDown := 50 * time.Millisecond
	c := quietClient(srv.URL, coolDown)

	start := time.Now()
	statuses, err := c.GetSingle(context.Background(), "5")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), coolDown)
	assert.Equal(t, "Available", statuses["2025-06-01T00:00:00Z"])
}

func TestRecGovClient_RateLimitHoldsOtherCalls(t *testing.T) {
	var mu sync.Mutex
	var limited bool
	var afterLimit []time.Time
	var limitedAt time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.URL.Path == "/api/camps/availability/campsite/1/all" && !limited {
			limited = true
			limitedAt = time.Now()
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if limited {
			afterLimit = append(afterLimit, time.Now())
		}
		fmt.Fprint(w, campsitePayload)
	}))
	defer srv.Close()

	coolDown := 80 * time.Millisecond
	c := quietClient(srv.URL, coolDown)

	_, err := c.GetSingle(context.Background(), "1")
	require.NoError(t, err)

	_, err = c.GetSingle(context.Background(), "2")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, afterLimit, 2)
	for _, at := range afterLimit {
		assert.GreaterOrEqual(t, at.Sub(limitedAt), coolDown)
	}
}

func TestRecGovClient_GivesUpAfterRateLimitRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := quietClient(srv.URL, time.Millisecond, WithRateLimitRetries(2))
	_, err := c.GetSingle(context.Background(), "5")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRecGovClient_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := quietClient(srv.URL, time.Millisecond)
	_, err := c.GetSingle(context.Background(), "5")
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRecGovClient_CancelledDuringCoolDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := quietClient(srv.URL, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetSingle(ctx, "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecGovClient_GetFacilityMonth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/camps/availability/campground/100/month", r.URL.Path)
		assert.Equal(t, "2025-06-01T00:00:00.000Z", r.URL.Query().Get("start_date"))
		fmt.Fprint(w, `{"campsites": {
			"5": {"campsite_id": "5", "availabilities": {"2025-06-01T00:00:00Z": "Available"}},
			"6": {"availabilities": {"2025-06-01T00:00:00Z": "Reserved"}}
		}}`)
	}))
	defer srv.Close()

	c := quietClient(srv.URL, time.Second)
	campsites, err := c.GetFacilityMonth(context.Background(), "100", time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, campsites, 2)
	assert.Equal(t, "Available", campsites["5"]["2025-06-01T00:00:00Z"])
	assert.Equal(t, "Reserved", campsites["6"]["2025-06-01T00:00:00Z"])
}

func TestRecGovClient_GetFacilityMonthReturnsRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := quietClient(srv.URL, time.Hour)
	_, err := c.GetFacilityMonth(context.Background(), "100", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(1), calls.Load(), "grouped fetches leave retries to the monitor")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&UpstreamError{StatusCode: 429}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &UpstreamError{StatusCode: 503})))
	assert.False(t, IsRetryable(&UpstreamError{StatusCode: 404}))
	assert.False(t, IsRetryable(fmt.Errorf("dial tcp: refused")))
}
