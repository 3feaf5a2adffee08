package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultEODHDBaseURL public EODHD endpoint
	DefaultEODHDBaseURL = "https://eodhd.com/api"

	defaultEODHDTimeout   = 10 * time.Second
	defaultEODHDRateLimit = 1
)

// EODHDClient EODHD market data API client
type EODHDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	maxRetries int
	backoff    []time.Duration
}

// EODHDOption configures the client
type EODHDOption func(*EODHDClient)

// WithBaseURL overrides the API root
func WithBaseURL(baseURL string) EODHDOption {
	return func(c *EODHDClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(httpClient *http.Client) EODHDOption {
	return func(c *EODHDClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) EODHDOption {
	return func(c *EODHDClient) {
		c.logger = logger
	}
}

// WithRateLimit caps requests per second
func WithRateLimit(requestsPerSecond int) EODHDOption {
	return func(c *EODHDClient) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithRetry retries transient failures, waiting backoff[i] before attempt i+1
func WithRetry(maxRetries int, backoff []time.Duration) EODHDOption {
	return func(c *EODHDClient) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// NewEODHDClient creates the client
func NewEODHDClient(apiKey string, opts ...EODHDOption) *EODHDClient {
	c := &EODHDClient{
		baseURL: DefaultEODHDBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultEODHDTimeout,
		},
		logger:  arbor.NewNoOpLogger(),
		limiter: rate.NewLimiter(rate.Limit(defaultEODHDRateLimit), defaultEODHDRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError non-200 answer from the API
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Temporary rate limiting and server side failures are worth retrying
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RateLimitError the local limiter could not grant a slot
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EODHD rate limiter: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// get performs a GET with retries on transient failures
func (c *EODHDClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffFor(attempt - 1)
			c.logger.Debug().
				Str("endpoint", path).
				Int("attempt", attempt).
				Str("wait", wait.String()).
				Msg("Retrying EODHD request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		lastErr = c.do(ctx, path, params, result)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *EODHDClient) backoffFor(i int) time.Duration {
	if len(c.backoff) == 0 {
		return time.Second
	}
	if i >= len(c.backoff) {
		return c.backoff[len(c.backoff)-1]
	}
	return c.backoff[i]
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *EODHDClient) do(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for the rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Err: err}
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_token", c.apiKey)
	query.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.logger.Trace().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Bar one OHLCV bar
type Bar struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// IntradayBar one intraday bar
type IntradayBar struct {
	Timestamp int64   `json:"timestamp"`
	Datetime  string  `json:"datetime"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// RealTimeQuote delayed live quote; unavailable fields come back as "NA"
type RealTimeQuote struct {
	Code          string    `json:"code"`
	Timestamp     flexFloat `json:"timestamp"`
	Open          flexFloat `json:"open"`
	High          flexFloat `json:"high"`
	Low           flexFloat `json:"low"`
	Close         flexFloat `json:"close"`
	PreviousClose flexFloat `json:"previousClose"`
	Change        flexFloat `json:"change"`
	ChangePercent flexFloat `json:"change_p"`
}

// flexFloat decodes numbers, numeric strings and "NA"
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "NA" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// GetEOD daily bars between from and to, ascending
func (c *EODHDClient) GetEOD(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	var bars []Bar
	if err := c.get(ctx, "/eod/"+symbol, params, &bars); err != nil {
		return nil, err
	}

	for i := range bars {
		if t, err := time.Parse("2006-01-02", bars[i].DateStr); err == nil {
			bars[i].Date = t
		}
	}
	return bars, nil
}

// GetIntraday bars at the given interval ("1m", "5m", "1h") since from
func (c *EODHDClient) GetIntraday(ctx context.Context, symbol, interval string, from time.Time) ([]IntradayBar, error) {
	params := url.Values{}
	params.Set("interval", interval)
	if !from.IsZero() {
		params.Set("from", strconv.FormatInt(from.Unix(), 10))
	}

	var bars []IntradayBar
	if err := c.get(ctx, "/intraday/"+symbol, params, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// GetRealTimeQuote latest quote for a symbol
func (c *EODHDClient) GetRealTimeQuote(ctx context.Context, symbol string) (*RealTimeQuote, error) {
	var quote RealTimeQuote
	if err := c.get(ctx, "/real-time/"+symbol, nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
