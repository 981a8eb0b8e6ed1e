package provider

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/edgarkpi/internal/infra"
)

// BaseFetcher provides common functionality for fetcher implementations.
// Embed this in concrete fetchers to get TTL caching through a shared
// infra.Cache. A nil cache or a zero TTL disables caching.
type BaseFetcher struct {
	model       ModelType
	description string
	required    []string
	optional    []string
	cache       infra.Cache
	ttl         time.Duration
}

// NewBaseFetcher creates a base fetcher that does not cache.
func NewBaseFetcher(model ModelType, desc string, required, optional []string) BaseFetcher {
	return BaseFetcher{
		model:       model,
		description: desc,
		required:    required,
		optional:    optional,
	}
}

// NewBaseFetcherWithCache creates a base fetcher whose results live in cache for ttl.
func NewBaseFetcherWithCache(model ModelType, desc string, required, optional []string, cache infra.Cache, ttl time.Duration) BaseFetcher {
	b := NewBaseFetcher(model, desc, required, optional)
	b.cache = cache
	b.ttl = ttl
	return b
}

func (b *BaseFetcher) ModelType() ModelType     { return b.model }
func (b *BaseFetcher) Description() string      { return b.description }
func (b *BaseFetcher) RequiredParams() []string { return b.required }
func (b *BaseFetcher) OptionalParams() []string { return b.optional }

// CacheGet retrieves a payload from the fetcher's cache.
func (b *BaseFetcher) CacheGet(ctx context.Context, key string) ([]byte, bool) {
	if b.cache == nil || b.ttl <= 0 {
		return nil, false
	}
	val, ok := b.cache.Get(ctx, key)
	result := "miss"
	if ok {
		result = "hit"
	}
	infra.CacheLookups.WithLabelValues(string(b.model), result).Inc()
	zerolog.Ctx(ctx).Debug().Str("key", key).Str("result", result).Msg("cache lookup")
	return val, ok
}

// CacheSet stores a payload in the fetcher's cache.
func (b *BaseFetcher) CacheSet(ctx context.Context, key string, value []byte) {
	if b.cache == nil || b.ttl <= 0 {
		return
	}
	b.cache.Set(ctx, key, value, b.ttl)
}

// CacheGetJSON decodes a cached value into dest. Undecodable entries count as misses.
func (b *BaseFetcher) CacheGetJSON(ctx context.Context, key string, dest any) bool {
	raw, ok := b.CacheGet(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// CacheSetJSON encodes value and stores it in the fetcher's cache.
func (b *BaseFetcher) CacheSetJSON(ctx context.Context, key string, value any) {
	if b.cache == nil || b.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	b.CacheSet(ctx, key, raw)
}

// CacheKey builds a cache key from model type and query parameters.
func CacheKey(model ModelType, params QueryParams) string {
	// Deterministic ordering of params for consistent cache keys.
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamProvider {
			continue // Don't include provider in cache key.
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(string(model))
	for _, k := range keys {
		sb.WriteString(":" + k + "=" + params[k])
	}
	return sb.String()
}

// NewResult wraps freshly fetched data.
func NewResult(data any) *FetchResult {
	return &FetchResult{
		Data:      data,
		FetchedAt: time.Now(),
	}
}

// NewCachedResult wraps data served from cache.
func NewCachedResult(data any) *FetchResult {
	return &FetchResult{
		Data:      data,
		FetchedAt: time.Now(),
		Cached:    true,
	}
}

// BaseProvider provides common functionality for provider implementations.
// Embed this in concrete providers to simplify implementation.
type BaseProvider struct {
	info        ProviderInfo
	fetchers    map[ModelType]Fetcher
	credentials map[string]string
}

// NewBaseProvider creates a base provider.
func NewBaseProvider(name, description, website string, creds []ProviderCredential) BaseProvider {
	return BaseProvider{
		info: ProviderInfo{
			Name:        name,
			Description: description,
			Website:     website,
			Credentials: creds,
		},
		fetchers:    make(map[ModelType]Fetcher),
		credentials: make(map[string]string),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

func (bp *BaseProvider) Init(credentials map[string]string) error {
	// Validate required credentials.
	for _, cred := range bp.info.Credentials {
		if cred.Required {
			val, ok := credentials[cred.Name]
			if !ok || strings.TrimSpace(val) == "" {
				return &ErrInvalidCredentials{
					Provider: bp.info.Name,
					Detail:   "missing required credential: " + cred.Name,
				}
			}
		}
	}
	bp.credentials = credentials
	return nil
}

func (bp *BaseProvider) Fetcher(model ModelType) Fetcher {
	return bp.fetchers[model]
}

func (bp *BaseProvider) SupportedModels() []ModelType {
	models := make([]ModelType, 0, len(bp.fetchers))
	for m := range bp.fetchers {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

func (bp *BaseProvider) Ping(ctx context.Context) error {
	return nil // Override in concrete providers.
}

// RegisterFetcher adds a fetcher to this provider.
func (bp *BaseProvider) RegisterFetcher(f Fetcher) {
	model := f.ModelType()
	bp.fetchers[model] = f
	// Update info models list.
	bp.info.Models = bp.SupportedModels()
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}
