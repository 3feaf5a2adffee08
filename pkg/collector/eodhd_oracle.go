package collector

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"PredictionRadar/pkg/market"
)

const (
	historyLookback  = 10 * 24 * time.Hour
	intradayLookback = 24 * time.Hour
)

// EODHDOracle PriceOracle backed by the EODHD API
type EODHDOracle struct {
	client   *EODHDClient
	clock    *market.Clock
	exchange string
	logger   arbor.ILogger
}

// NewEODHDOracle wraps a client; exchange is the EODHD suffix, "US" by default
func NewEODHDOracle(client *EODHDClient, clock *market.Clock, exchange string, logger arbor.ILogger) *EODHDOracle {
	if exchange == "" {
		exchange = "US"
	}
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	return &EODHDOracle{
		client:   client,
		clock:    clock,
		exchange: exchange,
		logger:   logger,
	}
}

func (o *EODHDOracle) symbol(ticker string) string {
	return strings.ToUpper(ticker) + "." + o.exchange
}

func (o *EODHDOracle) history(ctx context.Context, ticker string) ([]Bar, bool) {
	now := o.clock.Now()
	bars, err := o.client.GetEOD(ctx, o.symbol(ticker), now.Add(-historyLookback), now)
	if err != nil {
		o.logger.Warn().Err(err).Str("ticker", ticker).Msg("Daily history unavailable")
		return nil, false
	}
	return bars, len(bars) > 0
}

// Validate true when the ticker has recent daily history
func (o *EODHDOracle) Validate(ctx context.Context, ticker string) bool {
	_, ok := o.history(ctx, ticker)
	return ok
}

// PreviousClose baseline close per the session policy in SelectPreviousClose
func (o *EODHDOracle) PreviousClose(ctx context.Context, ticker string) (float64, bool) {
	bars, ok := o.history(ctx, ticker)
	if !ok {
		return 0, false
	}
	return SelectPreviousClose(bars, o.clock.Now(), o.clock)
}

// CurrentPrice real-time quote, then latest minute bar, then latest daily bar
func (o *EODHDOracle) CurrentPrice(ctx context.Context, ticker string) (float64, bool) {
	symbol := o.symbol(ticker)

	quote, err := o.client.GetRealTimeQuote(ctx, symbol)
	if err == nil && quote.Close > 0 {
		return float64(quote.Close), true
	}
	if err != nil {
		o.logger.Debug().Err(err).Str("ticker", ticker).Msg("Real-time quote unavailable")
	}

	minutes, err := o.client.GetIntraday(ctx, symbol, "1m", o.clock.Now().Add(-intradayLookback))
	if err == nil {
		for i := len(minutes) - 1; i >= 0; i-- {
			if minutes[i].Close > 0 {
				return minutes[i].Close, true
			}
		}
	} else {
		o.logger.Debug().Err(err).Str("ticker", ticker).Msg("Intraday bars unavailable")
	}

	bars, ok := o.history(ctx, ticker)
	if !ok {
		return 0, false
	}
	last := bars[len(bars)-1].Close
	return last, last > 0
}

// SelectPreviousClose picks the baseline from ascending daily bars.
// At or after the close the latest session counts; before it the prior session does.
// A single bar is used as is.
func SelectPreviousClose(bars []Bar, now time.Time, clock *market.Clock) (float64, bool) {
	switch len(bars) {
	case 0:
		return 0, false
	case 1:
		return bars[0].Close, bars[0].Close > 0
	}

	last := bars[len(bars)-1]
	if clock.IsAfterClose(now) {
		return last.Close, last.Close > 0
	}

	today := clock.CollectionDate(now)
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].DateStr < today {
			return bars[i].Close, bars[i].Close > 0
		}
	}
	return bars[0].Close, bars[0].Close > 0
}
