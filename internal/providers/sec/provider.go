// Package sec implements the SEC EDGAR data provider.
// SEC EDGAR provides free access to the ticker listing, company filing
// histories and XBRL company facts via JSON endpoints, plus Atom filing feeds
// and the filing archives.
//
// No API key required. Every request must carry a User-Agent with contact
// details per SEC policy.
// Docs: https://www.sec.gov/edgar/sec-api-documentation
// Rate limit: 10 requests/second per user-agent.
package sec

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/internal/infra"
	"github.com/seenimoa/edgarkpi/internal/provider"
)

const providerName = "sec"

// CredentialUserAgent is the credential carrying the SEC User-Agent.
const CredentialUserAgent = "user_agent"

// TTLs controls how long each model stays cached.
type TTLs struct {
	Tickers     time.Duration
	Submissions time.Duration
	Facts       time.Duration
	Feed        time.Duration
	Document    time.Duration
}

// DefaultTTLs are tuned to how often EDGAR data actually changes.
var DefaultTTLs = TTLs{
	Tickers:     24 * time.Hour,
	Submissions: 6 * time.Hour,
	Facts:       6 * time.Hour,
	Feed:        10 * time.Minute,
	Document:    time.Hour,
}

// Provider implements provider.Provider for SEC EDGAR.
type Provider struct {
	provider.BaseProvider
	client *Client
}

// New creates a new SEC provider and registers all fetchers. cache may be nil.
func New(client *Client, cache infra.Cache, ttls TTLs) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"SEC EDGAR - ticker listing, filing history, XBRL company facts",
			"https://www.sec.gov/edgar",
			[]provider.ProviderCredential{{
				Name:        CredentialUserAgent,
				Description: "App name and contact email sent as the User-Agent",
				Required:    true,
				EnvVar:      "EDGARKPI_SEC_USER_AGENT",
			}},
		),
		client: client,
	}

	// --- JSON data ---
	p.RegisterFetcher(newJSONFetcher(client, provider.ModelCompanyTickers,
		"SEC ticker to CIK listing", nil, cache, ttls.Tickers,
		func(provider.QueryParams) (string, error) { return edgar.TickersURL, nil }))
	p.RegisterFetcher(newJSONFetcher(client, provider.ModelCompanySubmissions,
		"Company filing history from the submissions API", []string{provider.ParamCIK}, cache, ttls.Submissions,
		cikURL(edgar.SubmissionsEndpoint)))
	p.RegisterFetcher(newJSONFetcher(client, provider.ModelCompanyFacts,
		"XBRL company facts for every reported concept", []string{provider.ParamCIK}, cache, ttls.Facts,
		cikURL(edgar.CompanyFactsEndpoint)))

	// --- Documents ---
	p.RegisterFetcher(newFeedFetcher(client, cache, ttls.Feed))
	p.RegisterFetcher(newDocumentFetcher(client, cache, ttls.Document))

	return p
}

// Client returns the HTTP client the provider fetches with.
func (p *Provider) Client() *Client { return p.client }

// Ping checks connectivity to SEC EDGAR.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.GetJSON(ctx, edgar.SubmissionsEndpoint(320193)); err != nil { // Apple
		return fmt.Errorf("sec ping: %w", err)
	}
	return nil
}
