package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/errs"
)

// JSONFeed fetches a symbol-scoped headlines endpoint that returns a
// flat JSON array, the shape several free financial-news aggregators
// expose.
type JSONFeed struct {
	id       string
	urlForSymbol func(domain.Symbol) string
	client   *http.Client
}

func NewJSONFeed(id string, urlForSymbol func(domain.Symbol) string, timeout time.Duration) *JSONFeed {
	return &JSONFeed{id: id, urlForSymbol: urlForSymbol, client: &http.Client{Timeout: timeout}}
}

func (j *JSONFeed) ID() string { return j.id }

type jsonHeadline struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"published_at"`
}

func (j *JSONFeed) FetchArticles(ctx context.Context, symbol domain.Symbol, maxArticles int) ([]domain.NewsArticle, error) {
	url := j.urlForSymbol(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.ProviderPermanent(j.id, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, errs.ProviderTransient(j.id, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.ProviderTransient(j.id, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.ProviderPermanent(j.id, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	var headlines []jsonHeadline
	if err := json.NewDecoder(resp.Body).Decode(&headlines); err != nil {
		return nil, errs.ProviderPermanent(j.id, "malformed JSON", err)
	}

	out := make([]domain.NewsArticle, 0, len(headlines))
	for _, h := range headlines {
		published, err := time.Parse(time.RFC3339, h.PublishedAt)
		if err != nil {
			published = time.Now().UTC()
		}
		out = append(out, domain.NewsArticle{
			URL:         h.URL,
			Title:       h.Title,
			Summary:     h.Summary,
			PublishedAt: published,
			Source:      j.id,
			SymbolHint:  symbol,
		})
		if len(out) >= maxArticles {
			break
		}
	}
	return out, nil
}

// DefaultJSONHeadlinesURL builds a per-symbol endpoint using the
// common "?symbols=" query convention, the shape spec §4.2 assumes for
// a JSON headlines source.
func DefaultJSONHeadlinesURL(base string) func(domain.Symbol) string {
	return func(symbol domain.Symbol) string {
		return fmt.Sprintf("%s?symbols=%s", base, strings.ToUpper(string(symbol)))
	}
}
