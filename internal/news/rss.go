package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/screener/internal/domain"
	"github.com/sawpanic/screener/internal/errs"
)

// RSS fetches an RSS 2.0 feed and extracts items relevant to a symbol
// by matching the symbol against title/summary text (feeds are
// typically per-exchange, not per-symbol). Atom <entry> elements are
// decoded too, but only their title is read (see rssFeed).
type RSS struct {
	id      string
	feedURL string
	client  *http.Client
}

func NewRSS(id, feedURL string, timeout time.Duration) *RSS {
	return &RSS{id: id, feedURL: feedURL, client: &http.Client{Timeout: timeout}}
}

func (r *RSS) ID() string { return r.id }

// rssFeed decodes RSS 2.0's <item> and Atom's <entry> into the same
// rssItem. rssItem's field tags are RSS 2.0 names, so an Atom entry
// yields its title only: its link href attribute, <summary> and
// <published> are not read.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []rssItem `xml:"entry"`
}

type rssItem struct {
	Title     string `xml:"title"`
	Link      string `xml:"link"`
	Summary   string `xml:"description"`
	Published string `xml:"pubDate"`
}

func (r *RSS) FetchArticles(ctx context.Context, symbol domain.Symbol, maxArticles int) ([]domain.NewsArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return nil, errs.ProviderPermanent(r.id, "build request", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errs.ProviderTransient(r.id, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.ProviderTransient(r.id, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.ProviderPermanent(r.id, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, errs.ProviderPermanent(r.id, "malformed feed XML", err)
	}

	items := feed.Channel.Items
	if len(items) == 0 {
		items = feed.Entries
	}

	var out []domain.NewsArticle
	for _, it := range items {
		if !mentionsSymbol(it.Title+" "+it.Summary, symbol) {
			continue
		}
		published := parseFeedTime(it.Published)
		out = append(out, domain.NewsArticle{
			URL:         it.Link,
			Title:       it.Title,
			Summary:     it.Summary,
			PublishedAt: published,
			Source:      r.id,
			SymbolHint:  symbol,
		})
		if len(out) >= maxArticles {
			break
		}
	}
	return out, nil
}

func parseFeedTime(s string) time.Time {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC3339}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func mentionsSymbol(text string, symbol domain.Symbol) bool {
	core := strings.TrimSuffix(string(symbol), ".AX")
	return strings.Contains(strings.ToUpper(text), strings.ToUpper(core))
}
