/*
Package tracker implements the external tracking collaborator boundary
as an HTTP client against the scraping backend.

The backend treats the tracker's payload as opaque: a successful call
returns the scraper's result verbatim, a business failure (keyword not
found, page layout changed) surfaces as a per-item *scheduler.TrackError,
and a transport or server failure wraps scheduler.ErrTrackerUnavailable.
*/
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/academy-ops/rank-tracking-backend/monitoring"
	"github.com/academy-ops/rank-tracking-backend/scheduler"
	"github.com/academy-ops/rank-tracking-backend/types"
	"github.com/sirupsen/logrus"
)

// Client calls the scraping backend over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger

	// consecutive protocol-level failures, feeds the unreachable alert
	failures atomic.Int64
}

// NewClient creates a tracker client for the given scraper base URL
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type trackRequest struct {
	Type    types.JobType `json:"type"`
	Keyword string        `json:"keyword"`
}

type trackResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Track asks the scraper to resolve the rank of one keyword
func (c *Client) Track(ctx context.Context, jobType types.JobType, keyword string) (json.RawMessage, error) {
	ctx, span := monitoring.CreateSpan(ctx, "tracker.Track")
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"tracker.type":    string(jobType),
		"tracker.keyword": keyword,
	})

	body, err := json.Marshal(trackRequest{Type: jobType, Keyword: keyword})
	if err != nil {
		return nil, fmt.Errorf("encode track request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/track", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build track request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Surface the caller's timeout as-is so it is recorded as a
		// timed-out item, not an unreachable backend
		if ctx.Err() != nil {
			monitoring.SetSpanError(span, ctx.Err())
			return nil, ctx.Err()
		}
		monitoring.SetSpanError(span, err)
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: %v", scheduler.ErrTrackerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		err := fmt.Errorf("%w: scraper returned %d", scheduler.ErrTrackerUnavailable, resp.StatusCode)
		monitoring.SetSpanError(span, err)
		c.failures.Add(1)
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: read response: %v", scheduler.ErrTrackerUnavailable, err)
	}

	c.failures.Store(0)

	var decoded trackResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &scheduler.TrackError{Message: fmt.Sprintf("malformed scraper response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("scraper returned %d", resp.StatusCode)
		}
		return nil, &scheduler.TrackError{Message: msg}
	}

	return decoded.Result, nil
}

// ConsecutiveFailures returns the number of protocol-level failures
// since the last successful call
func (c *Client) ConsecutiveFailures() int64 {
	return c.failures.Load()
}
