package sec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/edgarkpi/internal/infra"
	"github.com/seenimoa/edgarkpi/internal/provider"
	"github.com/seenimoa/edgarkpi/pkg/models"
)

const testUA = "edgarkpi-test ops@example.com"

// rewriteTransport sends every request to the test server, keeping the path.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

// newTestClient returns a client routed to srv that records backoff waits
// instead of sleeping.
func newTestClient(t *testing.T, srv *httptest.Server, maxRetries int) (*Client, *[]time.Duration) {
	t.Helper()
	target, _ := url.Parse(srv.URL)
	c, err := NewClient(Options{
		UserAgent:  testUA,
		Throttle:   -1,
		MaxRetries: maxRetries,
		HTTPClient: &http.Client{Transport: rewriteTransport{target: target}},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return c, &waits
}

func TestNewClientRequiresUserAgent(t *testing.T) {
	_, err := NewClient(Options{UserAgent: "  "})
	if !errors.Is(err, ErrMissingUserAgent) {
		t.Fatalf("expected ErrMissingUserAgent, got %v", err)
	}
	if Remediation(err) == "" {
		t.Error("expected remediation for missing user agent")
	}
}

func TestClientSendsUserAgent(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, 0)
	body, err := c.GetJSON(context.Background(), "https://data.sec.gov/submissions/CIK0000320193.json")
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body %s", body)
	}
	if gotUA != testUA || gotAccept != "application/json" {
		t.Errorf("headers: ua=%q accept=%q", gotUA, gotAccept)
	}
}

func TestClientRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, waits := newTestClient(t, srv, 6)
	if _, err := c.GetJSON(context.Background(), srv.URL+"/x"); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{700 * time.Millisecond, 1400 * time.Millisecond}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, (*waits)[i], want[i])
		}
	}
}

func TestClientRateLimitedAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c, waits := newTestClient(t, srv, 2)
	_, err := c.GetJSON(context.Background(), srv.URL+"/x")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 1 call + 2 retries, got %d", calls)
	}
	for _, w := range *waits {
		if w != 3*time.Second {
			t.Errorf("expected Retry-After wait of 3s, got %v", w)
		}
	}
	var he *ErrHTTP
	if !errors.As(err, &he) || he.Body != "slow down" {
		t.Errorf("expected ErrHTTP with body, got %v", err)
	}
	if !strings.Contains(Remediation(err), "Increase throttle") {
		t.Errorf("unexpected remediation %q", Remediation(err))
	}
}

func TestClientForbiddenNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, 6)
	_, err := c.GetJSON(context.Background(), srv.URL+"/x")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("403 must not match ErrRateLimited")
	}
	if calls != 1 {
		t.Errorf("403 should not be retried, got %d calls", calls)
	}
	if !strings.Contains(Remediation(err), "real email") {
		t.Errorf("unexpected remediation %q", Remediation(err))
	}
}

func TestClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, waits := newTestClient(t, srv, 6)
	_, err := c.GetJSON(context.Background(), srv.URL+"/x")
	var he *ErrHTTP
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 ErrHTTP, got %v", err)
	}
	if len(*waits) != 0 {
		t.Error("404 should not be retried")
	}
	if Remediation(err) != "" {
		t.Error("404 has no remediation")
	}
}

func TestBackoffCapped(t *testing.T) {
	c := &Client{backoff: DefaultBackoffFactor}
	if got := c.backoffFor(1, nil); got != 700*time.Millisecond {
		t.Errorf("attempt 1 backoff = %v", got)
	}
	if got := c.backoffFor(20, nil); got != maxBackoff {
		t.Errorf("expected cap at %v, got %v", maxBackoff, got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if parseRetryAfter("5") != 5*time.Second {
		t.Error("expected 5s")
	}
	if parseRetryAfter("") != 0 || parseRetryAfter("soon") != 0 {
		t.Error("expected zero for missing or invalid values")
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"https://www.sec.gov/files/company_tickers.json":                          "tickers",
		"https://data.sec.gov/submissions/CIK0000320193.json":                     "submissions",
		"https://data.sec.gov/api/xbrl/companyfacts/CIK0000320193.json":           "companyfacts",
		"https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany":              "feed",
		"https://www.sec.gov/Archives/edgar/data/320193/000032019324000081/a.htm": "archives",
		"https://example.com/": "other",
	}
	for u, want := range tests {
		if got := endpointLabel(u); got != want {
			t.Errorf("endpointLabel(%s) = %q, want %q", u, got, want)
		}
	}
}

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, _ := newTestClient(t, srv, 0)
	p := New(c, infra.NewMemoryCache(), DefaultTTLs)
	if err := p.Init(map[string]string{CredentialUserAgent: c.UserAgent()}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return p
}

func TestProviderInfo(t *testing.T) {
	p := newTestProvider(t, http.NotFoundHandler())
	info := p.Info()
	if info.Name != "sec" {
		t.Errorf("expected name sec, got %s", info.Name)
	}
	if len(info.Credentials) != 1 || !info.Credentials[0].Required {
		t.Errorf("expected one required credential, got %+v", info.Credentials)
	}
	if len(p.SupportedModels()) != len(provider.AllModels()) {
		t.Errorf("expected every model to be supported, got %v", p.SupportedModels())
	}
	if err := p.Init(nil); err == nil {
		t.Error("Init without user agent should fail")
	}
}

func TestProviderJSONFetchersCache(t *testing.T) {
	var calls int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/submissions/CIK0000320193.json":
			_, _ = w.Write([]byte(`{"name":"Apple Inc."}`))
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	f := p.Fetcher(provider.ModelCompanySubmissions)
	params := provider.QueryParams{provider.ParamCIK: "320193"}

	res, err := f.Fetch(ctx, params)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Cached || string(res.Data.([]byte)) != `{"name":"Apple Inc."}` {
		t.Errorf("unexpected first result: %+v", res)
	}
	res, err = f.Fetch(ctx, params)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.Cached {
		t.Error("second fetch should be served from cache")
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}

	if _, err := f.Fetch(ctx, provider.QueryParams{provider.ParamCIK: "abc"}); err == nil {
		t.Error("expected error for invalid cik")
	}
	_, err = p.Fetcher(provider.ModelCompanyFacts).Fetch(ctx, params)
	var he *ErrHTTP
	if !errors.As(err, &he) || he.StatusCode != http.StatusNotFound {
		t.Errorf("expected wrapped 404, got %v", err)
	}
}

const atomFeed = `<?xml version="1.0" encoding="ISO-8859-1" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Apple Inc. (0000320193)</title>
<entry>
  <title>10-K  - Annual report [Section 13 and 15(d), not S-K Item 405]</title>
  <link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/320193/000032019324000123/0000320193-24-000123-index.htm"/>
  <summary type="html"> &lt;b&gt;Filed:&lt;/b&gt; 2024-11-01 &lt;b&gt;AccNo:&lt;/b&gt; 0000320193-24-000123</summary>
  <updated>2024-11-01T06:01:36-04:00</updated>
  <category scheme="https://www.sec.gov/" label="form type" term="10-K"/>
  <id>urn:tag:sec.gov,2008:accession-number=0000320193-24-000123</id>
</entry>
</feed>`

func TestFeedFetcher(t *testing.T) {
	var query url.Values
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFeed))
	}))

	res, err := p.Fetcher(provider.ModelFilingFeed).Fetch(context.Background(),
		provider.QueryParams{provider.ParamCIK: "320193", provider.ParamForm: "10-K"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if query.Get("CIK") != "0000320193" || query.Get("type") != "10-K" {
		t.Errorf("unexpected feed query %v", query)
	}
	entries := res.Data.([]models.FeedEntry)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.FormType != "10-K" {
		t.Errorf("FormType = %q", e.FormType)
	}
	if !strings.Contains(e.Summary, "AccNo: 0000320193-24-000123") {
		t.Errorf("summary not cleaned: %q", e.Summary)
	}
	if e.Updated.IsZero() {
		t.Error("expected updated time")
	}
	if !strings.HasSuffix(e.Link, "0000320193-24-000123-index.htm") {
		t.Errorf("Link = %q", e.Link)
	}
}

func TestParseFeedFormType(t *testing.T) {
	const feed = `<?xml version="1.0" encoding="ISO-8859-1" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry>
  <title>10-Q  - Quarterly report [Sections 13 or 15(d)]</title>
  <category scheme="https://www.sec.gov/" label="form type" term="10-Q"/>
  <updated>2024-08-02T06:01:36-04:00</updated>
</entry>
<entry>
  <title>8-K  - Current report</title>
  <link rel="alternate" href="https://www.sec.gov/Archives/edgar/data/320193/000032019324000081-index.htm"/>
  <published>2024-07-30T16:30:00-04:00</published>
</entry>
<entry>
  <title>Untitled</title>
  <category label="form type" term=""/>
</entry>
</feed>`

	entries, err := ParseFeed([]byte(feed))
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	tests := []struct {
		form    string
		updated bool
	}{
		{"10-Q", true}, // category term, never the "form type" label
		{"8-K", true},  // title prefix, published time
		{"", false},
	}
	for i, tt := range tests {
		if entries[i].FormType != tt.form {
			t.Errorf("entry %d: FormType = %q, want %q", i, entries[i].FormType, tt.form)
		}
		if entries[i].Updated.IsZero() == tt.updated {
			t.Errorf("entry %d: Updated = %v", i, entries[i].Updated)
		}
	}
	if _, err := ParseFeed([]byte("not xml")); err == nil {
		t.Error("expected error for malformed feed")
	}
}

func TestDocumentFetcher(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>aapl-20240928</title><style>p{}</style></head>
<body><p>Apple   Inc.</p><script>var x=1;</script><p>Annual report</p></body></html>`))
	}))
	f := p.Fetcher(provider.ModelFilingDocument)
	ctx := context.Background()

	u := "https://www.sec.gov/Archives/edgar/data/320193/000032019324000123/aapl-20240928.htm"
	res, err := f.Fetch(ctx, provider.QueryParams{provider.ParamURL: u})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	doc := res.Data.(*models.FilingDocument)
	if doc.Title != "aapl-20240928" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Text != "Apple Inc.Annual report" && doc.Text != "Apple Inc. Annual report" {
		t.Errorf("Text = %q", doc.Text)
	}
	if strings.Contains(doc.Text, "var x") {
		t.Error("script content should be removed")
	}

	_, err = f.Fetch(ctx, provider.QueryParams{provider.ParamURL: "https://example.com/evil"})
	if !errors.Is(err, ErrNotArchiveURL) {
		t.Errorf("expected ErrNotArchiveURL, got %v", err)
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "héllo"
	if got := truncateUTF8(s, 2); got != "h" {
		t.Errorf("truncateUTF8 split a rune: %q", got)
	}
	if got := truncateUTF8(s, 3); got != "hé" {
		t.Errorf("truncateUTF8 = %q", got)
	}
}
