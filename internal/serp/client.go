// Package serp queries the DataForSEO SERP API for organic positions.
package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"rank_tracker/internal/model"
)

// ErrNotConfigured is returned when no API credentials are set.
var ErrNotConfigured = errors.New("serp source not configured")

// Batch sizes accepted by the upstream endpoints.
const (
	LiveBatchSize       = 100
	HistoricalBatchSize = 10
)

const (
	livePath       = "/v3/serp/google/organic/live/advanced"
	historicalPath = "/v3/dataforseo_labs/google/historical_serps/live"
	statusOK       = 20000
	maxBody        = 20 * 1024 * 1024
	dateLayout     = "2006-01-02"
	maxRetries     = 2
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one lookup for a set of keywords.
type Request struct {
	Keywords     []string
	TargetDomain string
	LocationCode int
	LanguageCode string
	Depth        int
}

// Result is the ranking of the target domain for one keyword.
type Result struct {
	// Position is nil when the domain was not found within the checked depth.
	Position *int
	Features []string
	FoundURL string
}

// BatchError reports a keyword range whose lookup failed. Results of the
// other batches are still returned alongside it.
type BatchError struct {
	Start, End int
	Keywords   []string
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d-%d: %v", e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// FailedKeywords lists the keywords of every BatchError combined in err.
func FailedKeywords(err error) []string {
	var out []string
	for _, e := range multierr.Errors(err) {
		var be *BatchError
		if errors.As(e, &be) {
			out = append(out, be.Keywords...)
		}
	}
	return out
}

// Client talks to the SERP API.
type Client struct {
	client   HTTPClient
	baseURL  string
	login    string
	password string
	pause    time.Duration
	timeout  time.Duration

	retryBase time.Duration
}

// New creates a Client. pause is slept between consecutive batches and
// timeout, when positive, bounds each batch including its retries.
func New(client HTTPClient, baseURL, login, password string, pause, timeout time.Duration) *Client {
	return &Client{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		login:    login,
		password: password,
		pause:    pause,
		timeout:  timeout,

		retryBase: time.Second,
	}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.login != "" && c.password != ""
}

// Live returns current positions for the request's keywords. When some
// batches fail, the results of the others are returned with the combined
// *BatchError values.
func (c *Client) Live(ctx context.Context, req Request) (map[string]Result, error) {
	return c.run(ctx, req, LiveBatchSize, livePath, func(kw string) any {
		return liveTask{
			Keyword:      kw,
			LocationCode: req.LocationCode,
			LanguageCode: req.LanguageCode,
			Depth:        req.Depth,
		}
	})
}

// Historical returns positions as recorded around date.
func (c *Client) Historical(ctx context.Context, req Request, date time.Time) (map[string]Result, error) {
	from := date.AddDate(0, 0, -3).Format(dateLayout)
	to := date.AddDate(0, 0, 3).Format(dateLayout)
	return c.run(ctx, req, HistoricalBatchSize, historicalPath, func(kw string) any {
		return historicalTask{
			Keyword:      kw,
			LocationCode: req.LocationCode,
			LanguageCode: req.LanguageCode,
			DateFrom:     from,
			DateTo:       to,
		}
	})
}

func (c *Client) run(ctx context.Context, req Request, size int, path string, task func(string) any) (map[string]Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	target := model.NormalizeDomain(req.TargetDomain)
	if target == "" {
		return nil, fmt.Errorf("target domain is required")
	}

	out := make(map[string]Result, len(req.Keywords))
	var errs error
	fail := func(start, end int, err error) {
		errs = multierr.Append(errs, &BatchError{
			Start:    start,
			End:      end,
			Keywords: req.Keywords[start:end],
			Err:      err,
		})
	}

	n := len(req.Keywords)
	for start := 0; start < n; start += size {
		if start > 0 {
			if err := sleep(ctx, c.pause); err != nil {
				fail(start, n, err)
				break
			}
		}
		end := min(start+size, n)

		tasks := make([]any, 0, end-start)
		for _, kw := range req.Keywords[start:end] {
			tasks = append(tasks, task(kw))
		}

		resp, err := c.post(ctx, path, tasks)
		if err != nil {
			fail(start, end, err)
			// The remaining batches would fail the same way.
			if ctx.Err() != nil {
				if end < n {
					fail(end, n, ctx.Err())
				}
				break
			}
			continue
		}
		for kw, res := range parse(resp, target, req.Depth) {
			out[kw] = res
		}
	}
	return out, errs
}

// post sends one batch, retrying transport failures and 5xx/429 replies.
func (c *Client) post(ctx context.Context, path string, tasks []any) (*apiResponse, error) {
	body, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("encode tasks: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var out *apiResponse
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(c.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		out, err = c.send(ctx, path, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, path string, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("http post: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, retry.RetryableError(err)
		}
		return nil, err
	}

	var out apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.StatusCode != statusOK {
		return nil, fmt.Errorf("api status %d: %s", out.StatusCode, out.StatusMessage)
	}
	return &out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
