package sec

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/edgarkpi/internal/infra"
	"github.com/seenimoa/edgarkpi/internal/provider"
)

// ---- JSON fetchers ----
// Tickers, submissions and company facts are passed on as raw payloads; the
// edgar package decodes them.

type jsonFetcher struct {
	provider.BaseFetcher
	client *Client
	urlFor func(provider.QueryParams) (string, error)
}

func newJSONFetcher(client *Client, model provider.ModelType, desc string, required []string,
	cache infra.Cache, ttl time.Duration, urlFor func(provider.QueryParams) (string, error)) *jsonFetcher {
	return &jsonFetcher{
		BaseFetcher: provider.NewBaseFetcherWithCache(model, desc, required, nil, cache, ttl),
		client:      client,
		urlFor:      urlFor,
	}
}

func (f *jsonFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(ctx, cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}

	u, err := f.urlFor(params)
	if err != nil {
		return nil, err
	}
	body, err := f.client.GetJSON(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("sec %s: %w", f.ModelType(), err)
	}

	f.CacheSet(ctx, cacheKey, body)
	return provider.NewResult(body), nil
}

// cikURL adapts a CIK endpoint builder to the fetcher's params.
func cikURL(build func(int64) string) func(provider.QueryParams) (string, error) {
	return func(params provider.QueryParams) (string, error) {
		cik, err := ParseCIKParam(params)
		if err != nil {
			return "", err
		}
		return build(cik), nil
	}
}

// ParseCIKParam reads the "cik" parameter, accepting padded or unpadded digits.
func ParseCIKParam(params provider.QueryParams) (int64, error) {
	raw := strings.TrimSpace(params[provider.ParamCIK])
	if raw == "" {
		return 0, &provider.ErrMissingParam{Param: provider.ParamCIK}
	}
	cik, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cik < 0 {
		return 0, fmt.Errorf("invalid cik %q", raw)
	}
	return cik, nil
}
