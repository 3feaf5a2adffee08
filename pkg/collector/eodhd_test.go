package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PredictionRadar/pkg/config"
	"PredictionRadar/pkg/market"
)

func fixedClock(t *testing.T, at time.Time) *market.Clock {
	t.Helper()
	clock, err := market.NewClock(config.Default().Market, market.WithNow(func() time.Time { return at }))
	require.NoError(t, err)
	return clock
}

func newTestClient(serverURL string) *EODHDClient {
	return NewEODHDClient("test-key",
		WithBaseURL(serverURL),
		WithRateLimit(0),
		WithRetry(2, []time.Duration{time.Millisecond}),
	)
}

type fakeOracle struct {
	prev, cur       float64
	prevOK, curOK   bool
	validateTickers map[string]bool
}

func (f *fakeOracle) Validate(_ context.Context, ticker string) bool {
	return f.validateTickers[ticker]
}

func (f *fakeOracle) PreviousClose(context.Context, string) (float64, bool) {
	return f.prev, f.prevOK
}

func (f *fakeOracle) CurrentPrice(context.Context, string) (float64, bool) {
	return f.cur, f.curOK
}

func TestMovement(t *testing.T) {
	assert.Equal(t, 25.0, Movement(100, 125))
	assert.Equal(t, -12.5, Movement(80, 70))
	assert.Equal(t, 3.33, Movement(3, 3.1))
	assert.Equal(t, 0.0, Movement(0, 125))
}

func TestLookup(t *testing.T) {
	data, ok := Lookup(context.Background(), &fakeOracle{prev: 100, cur: 125, prevOK: true, curOK: true}, "AAPL")
	require.True(t, ok)
	assert.Equal(t, PriceData{PreviousClose: 100, CurrentPrice: 125, ActualMovementPct: 25}, data)

	_, ok = Lookup(context.Background(), &fakeOracle{prevOK: true}, "AAPL")
	assert.False(t, ok)
	_, ok = Lookup(context.Background(), &fakeOracle{curOK: true}, "AAPL")
	assert.False(t, ok)
}

func TestGetEODParsesDatesAndSendsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/AAPL.US", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("from"))
		fmt.Fprint(w, `[{"date":"2024-03-07","close":100.5},{"date":"2024-03-08","close":101}]`)
	}))
	defer server.Close()

	bars, err := newTestClient(server.URL).GetEOD(context.Background(), "AAPL.US",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), bars[1].Date)
	assert.Equal(t, 101.0, bars[1].Close)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetEOD(context.Background(), "AAPL.US", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "Ticker Not Found.", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetEOD(context.Background(), "ZZZZ.US", time.Time{}, time.Time{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/eod/ZZZZ.US", apiErr.Endpoint)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRealTimeQuoteHandlesNA(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"AAPL.US","timestamp":"NA","close":"NA","previousClose":171.2}`)
	}))
	defer server.Close()

	quote, err := newTestClient(server.URL).GetRealTimeQuote(context.Background(), "AAPL.US")
	require.NoError(t, err)
	assert.Equal(t, flexFloat(0), quote.Close)
	assert.Equal(t, flexFloat(171.2), quote.PreviousClose)
}

// priceServer serves canned bodies per endpoint; an empty body answers 404
func priceServer(t *testing.T, realtime, intraday, eod string) *httptest.Server {
	t.Helper()
	respond := func(w http.ResponseWriter, body string) {
		if body == "" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/real-time/", func(w http.ResponseWriter, r *http.Request) { respond(w, realtime) })
	mux.HandleFunc("/intraday/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		respond(w, intraday)
	})
	mux.HandleFunc("/eod/", func(w http.ResponseWriter, r *http.Request) { respond(w, eod) })
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

const eodBody = `[{"date":"2024-03-07","close":90},{"date":"2024-03-08","close":100},{"date":"2024-03-11","close":110}]`

func TestCurrentPriceFallbackChain(t *testing.T) {
	ny := fixedClock(t, time.Time{}).Location()
	clock := fixedClock(t, time.Date(2024, 3, 11, 12, 0, 0, 0, ny))

	tests := []struct {
		name     string
		realtime string
		intraday string
		eod      string
		want     float64
		wantOK   bool
	}{
		{"real-time wins", `{"close":123.4}`, `[{"close":120}]`, eodBody, 123.4, true},
		{"real-time NA uses minute bar", `{"close":"NA"}`, `[{"close":119},{"close":121.5}]`, eodBody, 121.5, true},
		{"real-time missing uses minute bar", "", `[{"close":118}]`, eodBody, 118, true},
		{"falls back to daily bar", "", "", eodBody, 110, true},
		{"nothing available", "", "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := priceServer(t, tt.realtime, tt.intraday, tt.eod)
			oracle := NewEODHDOracle(newTestClient(server.URL), clock, "US", nil)

			got, ok := oracle.CurrentPrice(context.Background(), "aapl")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOracleValidate(t *testing.T) {
	clock := fixedClock(t, time.Date(2024, 3, 11, 17, 0, 0, 0, time.UTC))

	oracle := NewEODHDOracle(newTestClient(priceServer(t, "", "", eodBody).URL), clock, "", nil)
	assert.True(t, oracle.Validate(context.Background(), "AAPL"))

	oracle = NewEODHDOracle(newTestClient(priceServer(t, "", "", `[]`).URL), clock, "", nil)
	assert.False(t, oracle.Validate(context.Background(), "AAPL"))

	oracle = NewEODHDOracle(newTestClient(priceServer(t, "", "", "").URL), clock, "", nil)
	assert.False(t, oracle.Validate(context.Background(), "ZZZZ"))
}

func TestOraclePreviousClose(t *testing.T) {
	ny := fixedClock(t, time.Time{}).Location()
	server := priceServer(t, "", "", eodBody)

	// Monday 11:00: today's bar is in progress, baseline is Friday
	clock := fixedClock(t, time.Date(2024, 3, 11, 11, 0, 0, 0, ny))
	prev, ok := NewEODHDOracle(newTestClient(server.URL), clock, "US", nil).PreviousClose(context.Background(), "AAPL")
	require.True(t, ok)
	assert.Equal(t, 100.0, prev)

	// Monday 16:30: the session has closed, today's close is the baseline
	clock = fixedClock(t, time.Date(2024, 3, 11, 16, 30, 0, 0, ny))
	prev, ok = NewEODHDOracle(newTestClient(server.URL), clock, "US", nil).PreviousClose(context.Background(), "AAPL")
	require.True(t, ok)
	assert.Equal(t, 110.0, prev)
}

func TestSelectPreviousClose(t *testing.T) {
	ny := fixedClock(t, time.Time{}).Location()
	clock := fixedClock(t, time.Time{})
	bars := []Bar{
		{DateStr: "2024-03-07", Close: 90},
		{DateStr: "2024-03-08", Close: 100},
	}

	tests := []struct {
		name   string
		bars   []Bar
		now    time.Time
		want   float64
		wantOK bool
	}{
		{"no history", nil, time.Date(2024, 3, 11, 11, 0, 0, 0, ny), 0, false},
		{"single session", bars[:1], time.Date(2024, 3, 11, 11, 0, 0, 0, ny), 90, true},
		{"pre-market without today's bar", bars, time.Date(2024, 3, 11, 8, 0, 0, 0, ny), 100, true},
		{"after close uses latest", bars, time.Date(2024, 3, 8, 17, 0, 0, 0, ny), 100, true},
		{"intraday with today's bar", bars, time.Date(2024, 3, 8, 12, 0, 0, 0, ny), 90, true},
		{"weekend", bars, time.Date(2024, 3, 9, 12, 0, 0, 0, ny), 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectPreviousClose(tt.bars, tt.now, clock)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
