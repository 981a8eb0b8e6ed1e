// Package tracker runs fetch cycles: it resolves a ticker to a company,
// pulls its filing history and XBRL facts through the provider registry and
// assembles the KPI panel.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/edgarkpi/internal/analysis/fundamental"
	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/internal/infra"
	"github.com/seenimoa/edgarkpi/internal/provider"
	"github.com/seenimoa/edgarkpi/internal/providers/sec"
	"github.com/seenimoa/edgarkpi/pkg/models"
	"github.com/seenimoa/edgarkpi/pkg/utils"
)

var (
	// ErrNoCompanies is returned when the ticker listing resolves to nothing.
	ErrNoCompanies = errors.New("ticker listing is empty")
	// ErrTickerNotFound is returned for tickers missing from the listing.
	ErrTickerNotFound = errors.New("ticker not found")
)

// Options tunes a Service.
type Options struct {
	Extended     bool          // include EPS Diluted
	FilingsLimit int           // most recent filings kept per snapshot; <= 0 keeps all
	PanelTail    int           // most recent panel rows kept per snapshot; <= 0 keeps all
	ListingTTL   time.Duration // how long the resolved ticker listing is reused
}

// DefaultOptions mirror the config defaults.
var DefaultOptions = Options{
	FilingsLimit: 25,
	PanelTail:    12,
	ListingTTL:   time.Hour,
}

// Service orchestrates fetch cycles over a provider registry.
type Service struct {
	reg   *provider.Registry
	cache infra.Cache
	opts  Options

	mu       sync.Mutex
	listing  []models.CompanyIdentity
	listedAt time.Time
	now      func() time.Time
}

// New creates a Service. cache is the store shared with the fetchers and is
// only used by Refresh; it may be nil.
func New(reg *provider.Registry, cache infra.Cache, opts Options) *Service {
	return &Service{
		reg:   reg,
		cache: cache,
		opts:  opts,
		now:   time.Now,
	}
}

// Options returns the service options.
func (s *Service) Options() Options { return s.opts }

// Concepts returns the concept definitions a snapshot requests.
func (s *Service) Concepts(extended bool) []fundamental.ConceptDef {
	return fundamental.Concepts(extended || s.opts.Extended)
}

// Companies returns the resolved ticker listing, sorted by ticker.
func (s *Service) Companies(ctx context.Context) ([]models.CompanyIdentity, error) {
	s.mu.Lock()
	if s.listing != nil && s.now().Sub(s.listedAt) < s.opts.ListingTTL {
		ids := s.listing
		s.mu.Unlock()
		return ids, nil
	}
	s.mu.Unlock()

	body, err := s.fetchBytes(ctx, provider.ModelCompanyTickers, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker listing: %w", err)
	}
	ids := edgar.ResolveIdentities(body)
	if len(ids) == 0 {
		return nil, ErrNoCompanies
	}
	zerolog.Ctx(ctx).Debug().Int("companies", len(ids)).Msg("resolved ticker listing")

	s.mu.Lock()
	s.listing, s.listedAt = ids, s.now()
	s.mu.Unlock()
	return ids, nil
}

// Lookup resolves a ticker, or a bare CIK number, to a company.
func (s *Service) Lookup(ctx context.Context, ticker string) (models.CompanyIdentity, error) {
	ids, err := s.Companies(ctx)
	if err != nil {
		return models.CompanyIdentity{}, err
	}
	symbol := utils.NormalizeTicker(ticker)
	if id, ok := edgar.FindCompany(ids, symbol); ok {
		return id, nil
	}
	if utils.IsNumeric(symbol) {
		if cik, err := strconv.ParseInt(symbol, 10, 64); err == nil {
			if id, ok := edgar.FindByCIK(ids, cik); ok {
				return id, nil
			}
		}
	}
	return models.CompanyIdentity{}, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
}

// Search returns companies whose ticker or name matches query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.CompanyIdentity, error) {
	ids, err := s.Companies(ctx)
	if err != nil {
		return nil, err
	}
	return edgar.SearchCompanies(ids, query, limit), nil
}

// Filings returns the company's recent 10-Q, 10-K and 8-K filings, newest
// first. limit <= 0 returns all of them.
func (s *Service) Filings(ctx context.Context, ticker string, limit int) (models.CompanyIdentity, []models.FilingRecord, error) {
	id, err := s.Lookup(ctx, ticker)
	if err != nil {
		return id, nil, err
	}
	body, err := s.fetchBytes(ctx, provider.ModelCompanySubmissions, cikParams(id.CIK))
	if err != nil {
		return id, nil, fmt.Errorf("fetch submissions for %s: %w", id.Ticker, err)
	}
	return id, headFilings(edgar.ExtractFilings(body, id.CIK), limit), nil
}

// Snapshot runs one fetch cycle for ticker. Submissions and company facts
// are fetched concurrently. A company without filings or facts on record
// yields an empty table plus a warning rather than an error.
func (s *Service) Snapshot(ctx context.Context, ticker string, extended bool) (*models.CompanySnapshot, error) {
	start := s.now()
	defer func() { infra.SnapshotDuration.Observe(time.Since(start).Seconds()) }()

	cycle := uuid.NewString()
	log := zerolog.Ctx(ctx).With().Str("cycle", cycle).Str("ticker", ticker).Logger()
	ctx = log.WithContext(ctx)

	id, err := s.Lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		warnings []string
		subs     []byte
		facts    []byte
	)
	warn := func(what string, err error) {
		log.Warn().Err(err).Msg(what)
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf("%s: %v", what, err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := s.fetchBytes(gctx, provider.ModelCompanySubmissions, cikParams(id.CIK))
		if IsNotFound(err) {
			warn("no filing history", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch submissions for %s: %w", id.Ticker, err)
		}
		subs = body
		return nil
	})
	g.Go(func() error {
		body, err := s.fetchBytes(gctx, provider.ModelCompanyFacts, cikParams(id.CIK))
		if IsNotFound(err) {
			warn("no XBRL company facts", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch company facts for %s: %w", id.Ticker, err)
		}
		facts = body
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	panel, audit := fundamental.BuildPanelFromPayload(facts, s.Concepts(extended))
	resolved := 0
	for _, a := range audit {
		infra.ConceptResolutions.WithLabelValues(a.Concept, string(a.Status)).Inc()
		if a.Status == models.StatusResolved {
			resolved++
		}
	}

	snap := &models.CompanySnapshot{
		CycleID:   cycle,
		Company:   id,
		Filings:   headFilings(edgar.ExtractFilings(subs, id.CIK), s.opts.FilingsLimit),
		Panel:     panel.Tail(s.opts.PanelTail),
		Audit:     audit,
		FetchedAt: s.now(),
		Warnings:  warnings,
	}
	log.Info().
		Int("filings", len(snap.Filings)).
		Int("periods", len(panel.Rows)).
		Int("resolved", resolved).
		Int("requested", len(audit)).
		Msg("snapshot assembled")
	return snap, nil
}

// FactTags lists the concept tags the company reports, keyed by taxonomy.
// The audit uses it to show what a filer reports instead of a missing concept.
func (s *Service) FactTags(ctx context.Context, ticker string) (map[string][]string, error) {
	id, err := s.Lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	body, err := s.fetchBytes(ctx, provider.ModelCompanyFacts, cikParams(id.CIK))
	if err != nil {
		return nil, fmt.Errorf("fetch company facts for %s: %w", id.Ticker, err)
	}
	facts, err := edgar.ParseCompanyFacts(body)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, tax := range facts.Taxonomies() {
		out[tax] = facts.Tags(tax)
	}
	return out, nil
}

// Feed returns the latest entries of the company's EDGAR Atom feed,
// optionally filtered to one form type.
func (s *Service) Feed(ctx context.Context, ticker, form string) ([]models.FeedEntry, error) {
	id, err := s.Lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	params := cikParams(id.CIK)
	if form != "" {
		params[provider.ParamForm] = form
	}
	res, err := s.reg.FetchWithFallback(ctx, provider.ModelFilingFeed, params)
	if err != nil {
		return nil, fmt.Errorf("fetch filing feed for %s: %w", id.Ticker, err)
	}
	entries, ok := res.Data.([]models.FeedEntry)
	if !ok {
		return nil, fmt.Errorf("unexpected %T for %s", res.Data, provider.ModelFilingFeed)
	}
	return entries, nil
}

// Document fetches the readable text of an archived filing document.
func (s *Service) Document(ctx context.Context, rawURL string) (*models.FilingDocument, error) {
	res, err := s.reg.FetchWithFallback(ctx, provider.ModelFilingDocument, provider.QueryParams{provider.ParamURL: rawURL})
	if err != nil {
		return nil, fmt.Errorf("fetch filing document: %w", err)
	}
	doc, ok := res.Data.(*models.FilingDocument)
	if !ok {
		return nil, fmt.Errorf("unexpected %T for %s", res.Data, provider.ModelFilingDocument)
	}
	return doc, nil
}

// Refresh drops every cached payload so the next cycle refetches upstream.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.listing = nil
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	zerolog.Ctx(ctx).Info().Msg("cache flushed")
	return nil
}

// Status pings every registered provider.
func (s *Service) Status(ctx context.Context) []models.ProviderStatus {
	infos := s.reg.List()
	out := make([]models.ProviderStatus, len(infos))

	var wg sync.WaitGroup
	for i, info := range infos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := models.ProviderStatus{Name: info.Name}
			p, err := s.reg.Get(info.Name)
			if err == nil {
				start := time.Now()
				err = p.Ping(ctx)
				st.Latency = time.Since(start)
			}
			if err != nil {
				st.Error = err.Error()
			} else {
				st.OK = true
			}
			out[i] = st
		}()
	}
	wg.Wait()
	return out
}

// Coverage lists the providers serving each model in registration order.
func (s *Service) Coverage() map[provider.ModelType][]string {
	return s.reg.ModelCoverage()
}

// IsNotFound reports whether err means the upstream has no document for the
// request, as opposed to a transport or rate-limit failure.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *provider.ErrNotFound
	if errors.As(err, &nf) {
		return true
	}
	var he *sec.ErrHTTP
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func (s *Service) fetchBytes(ctx context.Context, model provider.ModelType, params provider.QueryParams) ([]byte, error) {
	if params == nil {
		params = provider.QueryParams{}
	}
	res, err := s.reg.FetchWithFallback(ctx, model, params)
	if err != nil {
		return nil, err
	}
	body, ok := res.Data.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected %T for %s", res.Data, model)
	}
	return body, nil
}

func cikParams(cik int64) provider.QueryParams {
	return provider.QueryParams{provider.ParamCIK: strconv.FormatInt(cik, 10)}
}

func headFilings(filings []models.FilingRecord, limit int) []models.FilingRecord {
	if limit > 0 && len(filings) > limit {
		return filings[:limit]
	}
	return filings
}
