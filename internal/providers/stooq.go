package providers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/errs"
)

// Stooq is the primary tabular-history provider (spec §4.1): Stooq's
// CSV time-series endpoint, never its HTML/info pages, per the hard
// rule against metadata-scrape endpoints. Grounded on the teacher's
// internal/providers/kraken.Client request/parse shape, adapted from
// JSON to CSV decoding.
type Stooq struct {
	baseURL string
	client  *http.Client
}

// NewStooq builds a Stooq adapter. baseURL defaults to the public
// stooq.com CSV endpoint.
func NewStooq(baseURL string, timeout time.Duration) *Stooq {
	if baseURL == "" {
		baseURL = "https://stooq.com/q/d/l"
	}
	return &Stooq{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (s *Stooq) ID() string { return "stooq" }

func (s *Stooq) GetSeries(ctx context.Context, symbol domain.Symbol, period domain.Period) (domain.PriceSeries, error) {
	interval := "d"
	url := fmt.Sprintf("%s/?s=%s&i=%s", s.baseURL, strings.ToLower(string(symbol)), interval)

	resp, err := s.do(ctx, url)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	defer resp.Body.Close()

	bars, err := parseStooqCSV(resp.Body)
	if err != nil {
		return domain.PriceSeries{}, errs.ProviderPermanent(s.ID(), "malformed CSV", err)
	}
	bars = trimToPeriod(bars, period)
	if len(bars) == 0 {
		return domain.PriceSeries{}, errs.ProviderPermanent(s.ID(), "no rows for symbol", nil)
	}

	return domain.PriceSeries{
		Symbol:    symbol,
		Period:    period,
		Bars:      bars,
		Source:    s.ID(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (s *Stooq) GetQuote(ctx context.Context, symbol domain.Symbol) (domain.Quote, error) {
	series, err := s.GetSeries(ctx, symbol, domain.Period1Month)
	if err != nil {
		return domain.Quote{}, err
	}
	last := series.Bars[len(series.Bars)-1]
	q := domain.Quote{Symbol: symbol, Price: last.Close, AsOf: last.Timestamp, Source: s.ID()}
	if len(series.Bars) >= 2 {
		q.PrevClose = series.Bars[len(series.Bars)-2].Close
	}
	q.Volume = last.Volume
	return q, nil
}

func (s *Stooq) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.ProviderPermanent(s.ID(), "build request", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errs.ProviderTransient(s.ID(), "request failed", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, errs.ProviderTransient(s.ID(), fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.ProviderPermanent(s.ID(), fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	return resp, nil
}

// parseStooqCSV decodes Stooq's "Date,Open,High,Low,Close,Volume"
// header format. A row whose Volume column is "N/D" (Stooq's index
// sentinel) is kept with VolumeValid=false rather than coerced to 0.
func parseStooqCSV(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	bars := make([]domain.Bar, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 6 {
			continue
		}
		ts, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePx, _ := strconv.ParseFloat(row[4], 64)

		bar := domain.Bar{Timestamp: ts, Open: open, High: high, Low: low, Close: closePx, AdjustedClose: closePx}
		if vol, err := strconv.ParseFloat(row[5], 64); err == nil {
			bar.Volume = vol
			bar.VolumeValid = true
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func trimToPeriod(bars []domain.Bar, period domain.Period) []domain.Bar {
	var days int
	switch period {
	case domain.Period1Month:
		days = 22
	case domain.Period3Months:
		days = 66
	case domain.Period6Months:
		days = 132
	case domain.Period1Year:
		days = 260
	default:
		days = 132
	}
	if len(bars) <= days {
		return bars
	}
	return bars[len(bars)-days:]
}
