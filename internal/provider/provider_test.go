package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/edgarkpi/internal/infra"
)

// mockFetcher implements the Fetcher interface for testing.
type mockFetcher struct {
	BaseFetcher
	fetchFn func(ctx context.Context, params QueryParams) (*FetchResult, error)
}

func newMockFetcher(model ModelType, required []string) *mockFetcher {
	return &mockFetcher{
		BaseFetcher: NewBaseFetcher(model, "mock fetcher for "+string(model), required, nil),
	}
}

func (m *mockFetcher) Fetch(ctx context.Context, params QueryParams) (*FetchResult, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, params)
	}
	return &FetchResult{
		Data:      "mock-data",
		FetchedAt: time.Now(),
	}, nil
}

// mockProvider implements the Provider interface for testing.
type mockProvider struct {
	BaseProvider
}

func newMockProvider(name string, models ...ModelType) *mockProvider {
	mp := &mockProvider{
		BaseProvider: NewBaseProvider(name, "Mock "+name, "https://example.com", nil),
	}
	for _, m := range models {
		mp.RegisterFetcher(newMockFetcher(m, []string{ParamCIK}))
	}
	return mp
}

// --- Registry Tests ---

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	p := newMockProvider("test-provider", ModelCompanyFacts, ModelCompanySubmissions)

	if err := p.Init(nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := reg.Get("test-provider")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Info().Name != "test-provider" {
		t.Errorf("expected name test-provider, got %s", got.Info().Name)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent provider")
	}
	if _, ok := err.(*ErrProviderNotFound); !ok {
		t.Errorf("expected ErrProviderNotFound, got %T", err)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("beta", ModelCompanyFacts))
	_ = reg.Register(newMockProvider("alpha", ModelCompanySubmissions))

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(list))
	}
	// Should be sorted alphabetically.
	if list[0].Name != "alpha" {
		t.Errorf("expected first provider 'alpha', got %s", list[0].Name)
	}
	if list[1].Name != "beta" {
		t.Errorf("expected second provider 'beta', got %s", list[1].Name)
	}
}

func TestRegistryProvidersFor(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCompanyFacts, ModelCompanyTickers))
	_ = reg.Register(newMockProvider("p2", ModelCompanyFacts))
	_ = reg.Register(newMockProvider("p3", ModelCompanyTickers))

	provs := reg.ProvidersFor(ModelCompanyFacts)
	if len(provs) != 2 {
		t.Fatalf("expected 2 providers for CompanyFacts, got %d", len(provs))
	}

	provs = reg.ProvidersFor(ModelCompanyTickers)
	if len(provs) != 2 {
		t.Fatalf("expected 2 providers for CompanyTickers, got %d", len(provs))
	}

	provs = reg.ProvidersFor(ModelFilingFeed)
	if len(provs) != 0 {
		t.Fatalf("expected 0 providers for FilingFeed, got %d", len(provs))
	}
}

func TestRegistrySetDefault(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCompanyFacts))
	_ = reg.Register(newMockProvider("p2", ModelCompanyFacts))

	// Default should be p1 (first registered).
	def, ok := reg.DefaultProvider(ModelCompanyFacts)
	if !ok || def != "p1" {
		t.Errorf("expected default p1, got %s (ok=%v)", def, ok)
	}

	// Change default.
	if err := reg.SetDefault(ModelCompanyFacts, "p2"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	def, ok = reg.DefaultProvider(ModelCompanyFacts)
	if !ok || def != "p2" {
		t.Errorf("expected default p2, got %s (ok=%v)", def, ok)
	}

	// Set default to non-existent provider.
	if err := reg.SetDefault(ModelCompanyFacts, "nope"); err == nil {
		t.Error("expected error setting default to non-existent provider")
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(newMockProvider("p1", ModelCompanyFacts)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(newMockProvider("p1", ModelCompanyTickers)); err == nil {
		t.Error("expected error registering p1 twice")
	}
	if err := reg.Register(newMockProvider("", ModelCompanyFacts)); err == nil {
		t.Error("expected error for empty provider name")
	}
}

func TestRegistryChainOrder(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("localfs", ModelCompanyFacts))
	_ = reg.Register(newMockProvider("sec", ModelCompanyFacts, ModelFilingFeed))

	if got := reg.ProvidersFor(ModelCompanyFacts); strings.Join(got, ",") != "localfs,sec" {
		t.Errorf("registration order: got %v", got)
	}
	if err := reg.SetDefault(ModelCompanyFacts, "sec"); err != nil {
		t.Fatal(err)
	}
	if got := reg.ProvidersFor(ModelCompanyFacts); strings.Join(got, ",") != "sec,localfs" {
		t.Errorf("pinned default should lead: got %v", got)
	}
	if err := reg.SetDefault(ModelFilingFeed, "localfs"); err == nil {
		t.Error("expected error pinning a provider that lacks the model")
	}
}

func TestRegistryFetch(t *testing.T) {
	reg := NewRegistry()
	mp := newMockProvider("test", ModelCompanyFacts)
	_ = reg.Register(mp)

	ctx := context.Background()
	params := QueryParams{ParamCIK: "320193"}

	result, err := reg.Fetch(ctx, ModelCompanyFacts, params)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Provider != "test" {
		t.Errorf("expected provider 'test', got %s", result.Provider)
	}
	if result.Model != ModelCompanyFacts {
		t.Errorf("expected model CompanyFacts, got %s", result.Model)
	}
	if result.Data != "mock-data" {
		t.Errorf("unexpected data: %v", result.Data)
	}
}

func TestRegistryFetchMissingParam(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelCompanyFacts))

	ctx := context.Background()
	params := QueryParams{} // Missing required "cik" param.

	_, err := reg.Fetch(ctx, ModelCompanyFacts, params)
	if err == nil {
		t.Fatal("expected error for missing param")
	}
	if _, ok := err.(*ErrMissingParam); !ok {
		t.Errorf("expected ErrMissingParam, got %T: %v", err, err)
	}
}

func TestRegistryFetchUnsupportedModel(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelCompanyFacts))

	ctx := context.Background()
	params := QueryParams{ParamCIK: "320193"}

	_, err := reg.Fetch(ctx, ModelFilingFeed, params)
	if err == nil {
		t.Fatal("expected error for unsupported model")
	}
}

func TestRegistryFetchWithProviderOverride(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCompanyFacts))

	mp2 := newMockProvider("p2", ModelCompanyFacts)
	f := newMockFetcher(ModelCompanyFacts, []string{ParamCIK})
	f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: "from-p2"}, nil
	}
	mp2.BaseProvider.fetchers[ModelCompanyFacts] = f
	_ = reg.Register(mp2)

	ctx := context.Background()
	params := QueryParams{
		ParamCIK:      "320193",
		ParamProvider: "p2", // Force provider p2.
	}

	result, err := reg.Fetch(ctx, ModelCompanyFacts, params)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Data != "from-p2" {
		t.Errorf("expected data from p2, got %v", result.Data)
	}
}

func TestRegistryFetchWithFallback(t *testing.T) {
	reg := NewRegistry()

	// p1 always fails.
	mp1 := newMockProvider("p1", ModelCompanyFacts)
	f1 := newMockFetcher(ModelCompanyFacts, []string{ParamCIK})
	f1.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return nil, &ErrModelNotSupported{Provider: "p1", Model: ModelCompanyFacts}
	}
	mp1.BaseProvider.fetchers[ModelCompanyFacts] = f1
	_ = reg.Register(mp1)

	// p2 succeeds.
	mp2 := newMockProvider("p2", ModelCompanyFacts)
	f2 := newMockFetcher(ModelCompanyFacts, []string{ParamCIK})
	f2.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: "fallback-data"}, nil
	}
	mp2.BaseProvider.fetchers[ModelCompanyFacts] = f2
	_ = reg.Register(mp2)

	ctx := context.Background()
	params := QueryParams{ParamCIK: "320193"}

	result, err := reg.FetchWithFallback(ctx, ModelCompanyFacts, params)
	if err != nil {
		t.Fatalf("FetchWithFallback failed: %v", err)
	}
	if result.Data != "fallback-data" {
		t.Errorf("expected fallback-data, got %v", result.Data)
	}
}

func TestModelCoverage(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCompanyFacts, ModelCompanyTickers))
	_ = reg.Register(newMockProvider("p2", ModelCompanyFacts, ModelFilingFeed))

	coverage := reg.ModelCoverage()

	if len(coverage[ModelCompanyFacts]) != 2 {
		t.Errorf("expected 2 providers for CompanyFacts, got %d", len(coverage[ModelCompanyFacts]))
	}
	if len(coverage[ModelCompanyTickers]) != 1 {
		t.Errorf("expected 1 provider for CompanyTickers, got %d", len(coverage[ModelCompanyTickers]))
	}
	if len(coverage[ModelFilingFeed]) != 1 {
		t.Errorf("expected 1 provider for FilingFeed, got %d", len(coverage[ModelFilingFeed]))
	}
}

// --- Base Provider Tests ---

func TestBaseProviderInit(t *testing.T) {
	creds := []ProviderCredential{
		{Name: "user_agent", Required: true, EnvVar: "TEST_USER_AGENT"},
	}
	bp := NewBaseProvider("test", "desc", "https://test.com", creds)

	// Missing required credential.
	if err := bp.Init(map[string]string{}); err == nil {
		t.Error("expected error for missing required credential")
	}

	// With credential.
	if err := bp.Init(map[string]string{"user_agent": "edgarkpi ops@example.com"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if bp.Credential("user_agent") != "edgarkpi ops@example.com" {
		t.Error("credential not stored")
	}
}

func TestBaseProviderRegisterFetcher(t *testing.T) {
	bp := NewBaseProvider("test", "desc", "https://test.com", nil)
	f := newMockFetcher(ModelCompanyFacts, nil)
	bp.RegisterFetcher(f)

	if bp.Fetcher(ModelCompanyFacts) == nil {
		t.Error("fetcher not registered")
	}
	if bp.Fetcher(ModelCompanyTickers) != nil {
		t.Error("fetcher should be nil for unregistered model")
	}
	if len(bp.SupportedModels()) != 1 {
		t.Errorf("expected 1 supported model, got %d", len(bp.SupportedModels()))
	}
}

// --- CacheKey Tests ---

func TestCacheKey(t *testing.T) {
	params := QueryParams{
		ParamCIK:      "320193",
		ParamForm:     "10-K",
		ParamProvider: "localfs", // Should be excluded.
	}

	key := CacheKey(ModelCompanySubmissions, params)
	if key != "CompanySubmissions:cik=320193:form=10-K" {
		t.Errorf("unexpected cache key %q", key)
	}
	if strings.Contains(key, "localfs") {
		t.Error("cache key should not contain provider name")
	}
	if CacheKey(ModelCompanyTickers, nil) != "CompanyTickers" {
		t.Error("expected bare model name without params")
	}
}

func TestBaseFetcherCache(t *testing.T) {
	ctx := context.Background()
	cache := infra.NewMemoryCache()
	b := NewBaseFetcherWithCache(ModelCompanyFacts, "facts", nil, nil, cache, time.Hour)

	if _, ok := b.CacheGet(ctx, "k"); ok {
		t.Fatal("expected miss")
	}
	b.CacheSet(ctx, "k", []byte(`{"a":1}`))
	if raw, ok := b.CacheGet(ctx, "k"); !ok || string(raw) != `{"a":1}` {
		t.Errorf("CacheGet = %q, %v", raw, ok)
	}

	type doc struct{ Title string }
	b.CacheSetJSON(ctx, "doc", doc{Title: "10-K"})
	var got doc
	if !b.CacheGetJSON(ctx, "doc", &got) || got.Title != "10-K" {
		t.Errorf("CacheGetJSON = %+v", got)
	}

	uncached := NewBaseFetcher(ModelCompanyFacts, "facts", nil, nil)
	uncached.CacheSet(ctx, "k2", []byte("x"))
	if _, ok := uncached.CacheGet(ctx, "k2"); ok {
		t.Error("fetcher without cache should never hit")
	}
}

func TestRegistryFetchWithFallbackNoDoubleTry(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	mp := newMockProvider("only", ModelCompanyFacts)
	f := newMockFetcher(ModelCompanyFacts, nil)
	f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		calls++
		return nil, &ErrNotFound{Provider: "only", Model: ModelCompanyFacts, Key: "1"}
	}
	mp.BaseProvider.fetchers[ModelCompanyFacts] = f
	_ = reg.Register(mp)

	_, err := reg.FetchWithFallback(context.Background(), ModelCompanyFacts, QueryParams{})
	if err == nil {
		t.Fatal("expected error")
	}
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected wrapped ErrNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("default provider fetched %d times, want 1", calls)
	}
}

// --- ValidateParams Tests ---

func TestValidateParams(t *testing.T) {
	err := ValidateParams(QueryParams{ParamCIK: "320193"}, []string{ParamCIK})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err = ValidateParams(QueryParams{}, []string{ParamCIK})
	if err == nil {
		t.Error("expected error for missing param")
	}

	err = ValidateParams(QueryParams{ParamCIK: ""}, []string{ParamCIK})
	if err == nil {
		t.Error("expected error for empty param")
	}
}

// --- Model Tests ---

func TestAllModels(t *testing.T) {
	all := AllModels()
	if len(all) != 5 {
		t.Errorf("expected 5 models, got %d", len(all))
	}

	// Check no duplicates.
	seen := make(map[ModelType]bool)
	for _, m := range all {
		if seen[m] {
			t.Errorf("duplicate model type: %s", m)
		}
		seen[m] = true
	}
}

func TestModelCategory(t *testing.T) {
	tests := []struct {
		model    ModelType
		category string
	}{
		{ModelCompanyTickers, "Reference"},
		{ModelCompanySubmissions, "Filings"},
		{ModelFilingFeed, "Filings"},
		{ModelFilingDocument, "Filings"},
		{ModelCompanyFacts, "Financial Data"},
		{ModelType("Unknown"), "Other"},
	}

	for _, tt := range tests {
		cat := ModelCategory(tt.model)
		if cat != tt.category {
			t.Errorf("ModelCategory(%s) = %q, want %q", tt.model, cat, tt.category)
		}
	}
}

func failingProvider(name string, err error, calls *int) *mockProvider {
	mp := newMockProvider(name)
	f := newMockFetcher(ModelCompanyFacts, nil)
	f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		*calls++
		return nil, err
	}
	mp.RegisterFetcher(f)
	return mp
}

func TestFetchWithFallbackReportsEveryAttempt(t *testing.T) {
	reg := NewRegistry()
	var c1, c2 int
	rateLimited := errors.New("rate limited")
	_ = reg.Register(failingProvider("localfs", &ErrNotFound{Provider: "localfs", Model: ModelCompanyFacts, Key: "42"}, &c1))
	_ = reg.Register(failingProvider("sec", rateLimited, &c2))

	_, err := reg.FetchWithFallback(context.Background(), ModelCompanyFacts, QueryParams{})
	var fe *FallbackError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FallbackError, got %T: %v", err, err)
	}
	if len(fe.Attempts) != 2 || c1 != 1 || c2 != 1 {
		t.Errorf("attempts=%d calls=%d/%d", len(fe.Attempts), c1, c2)
	}
	if !strings.Contains(err.Error(), "localfs") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error should name every attempt: %v", err)
	}
	// the last source decides what kind of failure this is
	if !errors.Is(err, rateLimited) {
		t.Error("expected FallbackError to unwrap to the last attempt")
	}
	var nf *ErrNotFound
	if errors.As(err, &nf) {
		t.Error("an earlier not-found must not mask the last error")
	}
}

func TestFetchWithFallbackStopsOnCancel(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	var c2 int
	mp := newMockProvider("first")
	f := newMockFetcher(ModelCompanyFacts, nil)
	f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		cancel()
		return nil, context.Canceled
	}
	mp.RegisterFetcher(f)
	_ = reg.Register(mp)
	_ = reg.Register(failingProvider("second", errors.New("unreachable"), &c2))

	if _, err := reg.FetchWithFallback(ctx, ModelCompanyFacts, QueryParams{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if c2 != 0 {
		t.Error("second provider should not be asked after cancellation")
	}
}

func TestFetchWithFallbackNoProvider(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("localfs", ModelCompanyFacts))

	_, err := reg.FetchWithFallback(context.Background(), ModelFilingFeed, QueryParams{})
	var np *ErrProviderNotFound
	if !errors.As(err, &np) || np.Model != ModelFilingFeed {
		t.Fatalf("expected ErrProviderNotFound for FilingFeed, got %v", err)
	}
	if !strings.Contains(err.Error(), "no provider serves FilingFeed") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestFetchWithFallbackPreferredProvider(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelCompanyFacts))
	_ = reg.Register(newMockProvider("p2", ModelCompanyFacts))

	res, err := reg.FetchWithFallback(context.Background(), ModelCompanyFacts, QueryParams{ParamCIK: "1", ParamProvider: "p2"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "p2" {
		t.Errorf("expected p2 to be asked first, got %s", res.Provider)
	}
}
