package sec

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed/atom"

	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/internal/infra"
	"github.com/seenimoa/edgarkpi/internal/provider"
	"github.com/seenimoa/edgarkpi/pkg/models"
)

// maxDocumentText caps the text kept from an archived document.
const maxDocumentText = 200_000

var (
	whitespace = regexp.MustCompile(`\s+`)
	stripTags  = bluemonday.StrictPolicy()
)

// ---- FilingFeed fetcher ----
// Reads a company's EDGAR Atom feed. The feed is fetched through the SEC
// client so it carries the User-Agent and shares the throttle.

type feedFetcher struct {
	provider.BaseFetcher
	client *Client
}

func newFeedFetcher(client *Client, cache infra.Cache, ttl time.Duration) *feedFetcher {
	return &feedFetcher{
		BaseFetcher: provider.NewBaseFetcherWithCache(
			provider.ModelFilingFeed,
			"Latest filings from the company's EDGAR Atom feed",
			[]string{provider.ParamCIK},
			[]string{provider.ParamForm},
			cache, ttl,
		),
		client: client,
	}
}

func (f *feedFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	cacheKey := provider.CacheKey(f.ModelType(), params)
	var entries []models.FeedEntry
	if f.CacheGetJSON(ctx, cacheKey, &entries) {
		return provider.NewCachedResult(entries), nil
	}

	cik, err := ParseCIKParam(params)
	if err != nil {
		return nil, err
	}
	body, err := f.client.Get(ctx, edgar.FeedEndpoint(cik, params[provider.ParamForm]), "application/atom+xml")
	if err != nil {
		return nil, fmt.Errorf("sec filing feed: %w", err)
	}

	entries, err = ParseFeed(body)
	if err != nil {
		return nil, err
	}

	f.CacheSetJSON(ctx, cacheKey, entries)
	return provider.NewResult(entries), nil
}

// ParseFeed converts an EDGAR Atom feed into feed entries. The form type is
// the entry category term; EDGAR labels every category "form type", so the
// label is never used. Entries without a category fall back to the title
// prefix ("10-K  - Annual report").
func ParseFeed(body []byte) ([]models.FeedEntry, error) {
	feed, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse filing feed: %w", err)
	}

	entries := make([]models.FeedEntry, 0, len(feed.Entries))
	for _, item := range feed.Entries {
		e := models.FeedEntry{
			Title:    strings.TrimSpace(item.Title),
			Link:     entryLink(item.Links),
			Summary:  cleanHTML(item.Summary),
			FormType: categoryTerm(item.Categories),
		}
		if e.Summary == "" && item.Content != nil {
			e.Summary = cleanHTML(item.Content.Value)
		}
		if e.FormType == "" {
			if form, _, ok := strings.Cut(e.Title, " - "); ok {
				e.FormType = strings.TrimSpace(form)
			}
		}
		switch {
		case item.UpdatedParsed != nil:
			e.Updated = *item.UpdatedParsed
		case item.PublishedParsed != nil:
			e.Updated = *item.PublishedParsed
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func categoryTerm(cats []*atom.Category) string {
	for _, c := range cats {
		if c != nil {
			if term := strings.TrimSpace(c.Term); term != "" {
				return term
			}
		}
	}
	return ""
}

// entryLink prefers the alternate link, which is the filing index page.
func entryLink(links []*atom.Link) string {
	first := ""
	for _, l := range links {
		if l == nil || l.Href == "" {
			continue
		}
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
		if first == "" {
			first = l.Href
		}
	}
	return first
}

// ---- FilingDocument fetcher ----
// Downloads an archived filing document and extracts its readable text.

type documentFetcher struct {
	provider.BaseFetcher
	client *Client
}

func newDocumentFetcher(client *Client, cache infra.Cache, ttl time.Duration) *documentFetcher {
	return &documentFetcher{
		BaseFetcher: provider.NewBaseFetcherWithCache(
			provider.ModelFilingDocument,
			"Readable text of an archived filing document",
			[]string{provider.ParamURL},
			nil,
			cache, ttl,
		),
		client: client,
	}
}

func (f *documentFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	u := strings.TrimSpace(params[provider.ParamURL])
	if !edgar.IsArchiveURL(u) {
		return nil, fmt.Errorf("%w: %s", ErrNotArchiveURL, u)
	}

	cacheKey := provider.CacheKey(f.ModelType(), params)
	var doc models.FilingDocument
	if f.CacheGetJSON(ctx, cacheKey, &doc) {
		return provider.NewCachedResult(&doc), nil
	}

	body, err := f.client.Get(ctx, u, "text/html")
	if err != nil {
		return nil, fmt.Errorf("sec filing document: %w", err)
	}
	parsed, err := ParseDocument(u, body)
	if err != nil {
		return nil, err
	}

	f.CacheSetJSON(ctx, cacheKey, parsed)
	return provider.NewResult(parsed), nil
}

// ParseDocument extracts the title and whitespace-collapsed text of an HTML filing.
func ParseDocument(u string, body []byte) (*models.FilingDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse filing HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	// inline XBRL header blocks hold machine-readable facts, not prose
	doc.Find("ix\\:header").Remove()

	text := strings.TrimSpace(whitespace.ReplaceAllString(doc.Find("body").Text(), " "))
	if text == "" {
		text = strings.TrimSpace(whitespace.ReplaceAllString(doc.Text(), " "))
	}
	if len(text) > maxDocumentText {
		text = truncateUTF8(text, maxDocumentText)
	}
	return &models.FilingDocument{
		URL:   u,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  text,
	}, nil
}

// cleanHTML strips every tag from a feed summary and unescapes entities.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(stripTags.Sanitize(s))
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
