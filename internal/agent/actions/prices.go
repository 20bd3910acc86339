package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sourcegraph/conc"

	"github.com/chative-genui/server/internal/agent/model"
	"github.com/chative-genui/server/pkg/financialdatasets"
	logx "github.com/chative-genui/server/pkg/logger"
)

const (
	dateLayout = "2006-01-02"

	// DefaultMaxExtraPages bounds pagination of the 30-day series.
	DefaultMaxExtraPages = 10

	pageLimit = 5000
)

// MarketData is the market data capability.
type MarketData interface {
	Snapshot(ctx context.Context, ticker string) (*financialdatasets.Snapshot, error)
	Prices(ctx context.Context, in financialdatasets.PricesQuery) (*financialdatasets.PricesPage, error)
	NextPage(ctx context.Context, nextURL string) (*financialdatasets.PricesPage, error)
}

type MarketOptions struct {
	MaxExtraPages int
	SnapshotTTL   time.Duration
	// Now is the clock used for the yesterday fallback. Defaults to time.Now.
	Now func() time.Time
}

// Market fetches price snapshots and histories.
type Market struct {
	data          MarketData
	snapshots     *gocache.Cache
	maxExtraPages int
	now           func() time.Time
}

func NewMarket(data MarketData, opts MarketOptions) *Market {
	if opts.MaxExtraPages <= 0 {
		opts.MaxExtraPages = DefaultMaxExtraPages
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Market{
		data:          data,
		snapshots:     gocache.New(opts.SnapshotTTL, 2*opts.SnapshotTTL),
		maxExtraPages: opts.MaxExtraPages,
		now:           opts.Now,
	}
}

// Snapshot returns the latest price of a ticker. Successful snapshots are cached briefly.
func (m *Market) Snapshot(ctx context.Context, ticker string) Result[model.Snapshot] {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return Fail[model.Snapshot]("A ticker symbol is required.")
	}
	if v, ok := m.snapshots.Get(ticker); ok {
		return Succeed(v.(model.Snapshot))
	}
	snap, err := m.data.Snapshot(ctx, ticker)
	if err != nil || snap == nil {
		logx.Error().Err(err).Str("ticker", ticker).Msg("Price snapshot failed")
		return Fail[model.Snapshot](fmt.Sprintf("Failed to fetch the price snapshot for %s.", ticker))
	}
	m.snapshots.Set(ticker, *snap, gocache.DefaultExpiration)
	return Succeed(*snap)
}

// PriceHistory fetches the intraday and 30-day series for a ticker.
//
// The 30-day series is required. The intraday series is best-effort: when it fails the
// result is degraded to the 30-day bars that fall on the latest date present.
func (m *Market) PriceHistory(ctx context.Context, ticker string) Result[model.PriceHistory] {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return Fail[model.PriceHistory]("A ticker symbol is required.")
	}
	latest := m.latestDate(ctx, ticker)
	end := latest.Format(dateLayout)
	start := latest.AddDate(0, 0, -30).Format(dateLayout)

	var (
		oneDay, thirtyDay       *financialdatasets.PricesPage
		oneDayErr, thirtyDayErr error
		wg                      conc.WaitGroup
	)
	wg.Go(func() {
		oneDay, oneDayErr = m.data.Prices(ctx, financialdatasets.PricesQuery{
			Ticker: ticker, Interval: "minute", Multiplier: 5, StartDate: end, EndDate: end, Limit: pageLimit,
		})
	})
	wg.Go(func() {
		thirtyDay, thirtyDayErr = m.data.Prices(ctx, financialdatasets.PricesQuery{
			Ticker: ticker, Interval: "minute", Multiplier: 30, StartDate: start, EndDate: end, Limit: pageLimit,
		})
	})
	wg.Wait()

	if thirtyDayErr != nil || thirtyDay == nil {
		logx.Error().Err(thirtyDayErr).Str("ticker", ticker).Msg("30-day price series failed")
		return Fail[model.PriceHistory](fmt.Sprintf("Failed to fetch the price history for %s.", ticker))
	}

	out := model.PriceHistory{Ticker: ticker, LatestDate: end}
	out.ThirtyDayPrices, out.Truncated = m.paginate(ctx, ticker, thirtyDay)
	if out.ThirtyDayPrices == nil {
		out.ThirtyDayPrices = []model.Price{}
	}

	if oneDayErr != nil || oneDay == nil {
		logx.Warn().Err(oneDayErr).
			Str("ticker", ticker).
			Bool("upstream_status", financialdatasets.IsStatus(oneDayErr)).
			Msg("Intraday series unavailable, deriving from 30-day series")
		out.OneDayPrices = latestDayOf(out.ThirtyDayPrices)
		out.Degraded = true
	} else {
		out.OneDayPrices = oneDay.Prices
		if out.OneDayPrices == nil {
			out.OneDayPrices = []model.Price{}
		}
	}

	logx.Info().Str("ticker", ticker).
		Int("one_day", len(out.OneDayPrices)).
		Int("thirty_day", len(out.ThirtyDayPrices)).
		Bool("degraded", out.Degraded).
		Bool("truncated", out.Truncated).
		Msg("Price history fetched")
	return Succeed(out)
}

// latestDate reads the market date from the snapshot, falling back to yesterday.
func (m *Market) latestDate(ctx context.Context, ticker string) time.Time {
	if snap := m.Snapshot(ctx, ticker); snap.OK() {
		if d := dateOf(snap.Value.Time); d != "" {
			if t, err := time.Parse(dateLayout, d); err == nil {
				return t
			}
		}
	}
	y := m.now().AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
}

// paginate follows continuation links at most maxExtraPages times. A failed page keeps
// what was accumulated so far.
func (m *Market) paginate(ctx context.Context, ticker string, first *financialdatasets.PricesPage) ([]model.Price, bool) {
	prices := append([]model.Price(nil), first.Prices...)
	next := first.NextPageURL
	for extra := 0; next != ""; extra++ {
		if extra >= m.maxExtraPages {
			logx.Warn().Str("ticker", ticker).Int("pages", extra+1).Msg("Price pagination limit reached")
			return prices, true
		}
		if ctx.Err() != nil {
			return prices, true
		}
		page, err := m.data.NextPage(ctx, next)
		if err != nil || page == nil {
			logx.Warn().Err(err).Str("ticker", ticker).Int("page", extra+2).Msg("Price page failed, keeping partial series")
			return prices, true
		}
		prices = append(prices, page.Prices...)
		next = page.NextPageURL
	}
	return prices, false
}

// latestDayOf returns the bars whose date equals the latest date in the series.
func latestDayOf(prices []model.Price) []model.Price {
	latest := ""
	for _, p := range prices {
		if d := dateOf(p.Time); d > latest {
			latest = d
		}
	}
	out := []model.Price{}
	if latest == "" {
		return out
	}
	for _, p := range prices {
		if dateOf(p.Time) == latest {
			out = append(out, p)
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	dateLayout,
}

// dateOf extracts the calendar date of a price time in the time's own offset.
func dateOf(ts string) string {
	ts = strings.TrimSpace(ts)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format(dateLayout)
		}
	}
	if len(ts) >= len(dateLayout) {
		return ts[:len(dateLayout)]
	}
	return ""
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
