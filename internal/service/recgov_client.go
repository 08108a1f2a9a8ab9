package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mic-havock/ridb-backend/internal/model"
)

const (
	defaultTimeout      = 30 * time.Second
	maxRateLimitRetries = 5
	userAgent           = "ridb-backend-monitor/1.0"
	monthStartLayout    = "2006-01-02T00:00:00.000Z"
)

// UpstreamError is a non-200 response from the availability API
type UpstreamError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned HTTP %d", e.URL, e.StatusCode)
}

// IsRateLimited reports whether err is an upstream 429
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is an upstream 429 or 5xx
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.StatusCode == http.StatusTooManyRequests || ue.StatusCode >= 500
}

// gate blocks every caller while the upstream has asked us to back off
type gate struct {
	mu    sync.Mutex
	until time.Time
}

func (g *gate) suspend(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if until := time.Now().Add(d); until.After(g.until) {
		g.until = until
	}
}

func (g *gate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := time.Until(g.until)
		g.mu.Unlock()

		if remaining <= 0 {
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RecGovClient handles communication with the recreation.gov availability API
type RecGovClient struct {
	client     *http.Client
	baseURL    string
	coolDown   time.Duration
	maxRetries int
	gate       *gate
	logger     *log.Logger
	errLogger  *log.Logger
}

// ClientOption configures a RecGovClient
type ClientOption func(*RecGovClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *RecGovClient) { c.client = hc }
}

// WithClientLoggers replaces the stdout and stderr loggers
func WithClientLoggers(logger, errLogger *log.Logger) ClientOption {
	return func(c *RecGovClient) {
		c.logger = logger
		c.errLogger = errLogger
	}
}

// WithRateLimitRetries bounds how many times one request is retried after a 429
func WithRateLimitRetries(n int) ClientOption {
	return func(c *RecGovClient) { c.maxRetries = n }
}

// NewRecGovClient creates a client for baseURL. coolDown is how long every
// call is held back after a single-campsite request is rate limited.
func NewRecGovClient(baseURL string, coolDown time.Duration, opts ...ClientOption) *RecGovClient {
	c := &RecGovClient{
		client:     &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		coolDown:   coolDown,
		maxRetries: maxRateLimitRetries,
		gate:       &gate{},
		logger:     log.New(os.Stdout, "", log.LstdFlags),
		errLogger:  log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSingle fetches every known date status for one campsite.
// A 429 suspends all upstream calls for the cool-down and then retries.
func (c *RecGovClient) GetSingle(ctx context.Context, campsiteID string) (model.DateStatuses, error) {
	u := fmt.Sprintf("%s/api/camps/availability/campsite/%s/all", c.baseURL, url.PathEscape(campsiteID))

	var body []byte
	for attempt := 0; ; attempt++ {
		if err := c.gate.wait(ctx); err != nil {
			return nil, err
		}

		var err error
		body, err = c.get(ctx, u)
		if err == nil {
			break
		}
		if !IsRateLimited(err) || attempt >= c.maxRetries {
			return nil, fmt.Errorf("failed to fetch campsite %s: %w", campsiteID, err)
		}

		c.errLogger.Printf("Rate limited fetching campsite %s, pausing upstream calls for %s", campsiteID, c.coolDown)
		c.gate.suspend(c.coolDown)
		c.logger.Printf("Retrying campsite %s after rate limit (attempt %d)", campsiteID, attempt+2)
	}

	statuses, err := ParseCampsiteAvailability(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse campsite %s availability: %w", campsiteID, err)
	}
	return statuses, nil
}

// GetFacilityMonth fetches the statuses of every campsite in a facility for
// the month containing month. Rate limits are returned to the caller, which
// owns the retry policy for grouped fetches.
func (c *RecGovClient) GetFacilityMonth(ctx context.Context, facilityID string, month time.Time) (map[string]model.DateStatuses, error) {
	q := url.Values{"start_date": {model.MonthStart(month).Format(monthStartLayout)}}
	u := fmt.Sprintf("%s/api/camps/availability/campground/%s/month?%s", c.baseURL, url.PathEscape(facilityID), q.Encode())

	if err := c.gate.wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch facility %s month %s: %w", facilityID, month.Format("2006-01"), err)
	}

	campsites, err := ParseFacilityMonth(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse facility %s month availability: %w", facilityID, err)
	}
	return campsites, nil
}

func (c *RecGovClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, URL: u}
	}

	return body, nil
}
