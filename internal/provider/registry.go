package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/edgarkpi/internal/infra"
)

// Registry routes fetches for a model type to the providers that serve it.
// Providers are tried in registration order unless a default is pinned with
// SetDefault, so registering the offline mirror before SEC EDGAR makes it the
// first source consulted.
type Registry struct {
	mu       sync.RWMutex
	order    []string            // registration order
	byName   map[string]Provider // name → provider
	override map[ModelType]string
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Provider),
		override: make(map[ModelType]string),
		now:      time.Now,
	}
}

// Register adds an initialized provider. Names must be unique.
func (r *Registry) Register(p Provider) error {
	name := p.Info().Name
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.byName[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns info about all registered providers, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ProviderInfo, 0, len(r.byName))
	for _, p := range r.byName {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ProvidersFor returns the providers serving model, default first.
func (r *Registry) ProvidersFor(model ModelType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chain(model)
}

// chain lists the providers for model with the pinned default moved to the
// front. Callers hold r.mu.
func (r *Registry) chain(model ModelType) []string {
	var out []string
	pinned := r.override[model]
	if pinned != "" {
		out = append(out, pinned)
	}
	for _, name := range r.order {
		if name != pinned && r.byName[name].Fetcher(model) != nil {
			out = append(out, name)
		}
	}
	return out
}

// DefaultProvider returns the provider consulted first for model.
func (r *Registry) DefaultProvider(model ModelType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.chain(model); len(c) > 0 {
		return c[0], true
	}
	return "", false
}

// SetDefault pins the provider consulted first for model.
func (r *Registry) SetDefault(model ModelType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byName[name]
	if !ok {
		return &ErrProviderNotFound{Name: name}
	}
	if p.Fetcher(model) == nil {
		return &ErrModelNotSupported{Provider: name, Model: model}
	}
	r.override[model] = name
	return nil
}

// Fetch asks a single provider for model: the one named by the "provider"
// param, or the default.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	name := params[ParamProvider]
	if name == "" {
		var ok bool
		if name, ok = r.DefaultProvider(model); !ok {
			return nil, &ErrProviderNotFound{Model: model}
		}
	}
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	f := p.Fetcher(model)
	if f == nil {
		return nil, &ErrModelNotSupported{Provider: name, Model: model}
	}
	if err := ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}

	res, err := f.Fetch(ctx, params)
	if err != nil {
		infra.ProviderFetches.WithLabelValues(name, string(model), "error").Inc()
		return nil, fmt.Errorf("provider %q fetch %s: %w", name, model, err)
	}
	outcome := "fetched"
	if res.Cached {
		outcome = "cached"
	}
	infra.ProviderFetches.WithLabelValues(name, string(model), outcome).Inc()

	res.Provider = name
	res.Model = model
	if res.FetchedAt.IsZero() {
		res.FetchedAt = r.now()
	}
	return res, nil
}

// FetchWithFallback walks the provider chain for model until one succeeds.
// A "provider" param moves that provider to the front. Each provider is asked
// once, and the walk stops early when ctx is done.
func (r *Registry) FetchWithFallback(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	chain := r.ProvidersFor(model)
	if first := params[ParamProvider]; first != "" {
		chain = append([]string{first}, without(chain, first)...)
	}
	if len(chain) == 0 {
		return nil, &ErrProviderNotFound{Model: model}
	}

	fe := &FallbackError{Model: model}
	for i, name := range chain {
		if i > 0 {
			if ctx.Err() != nil {
				break
			}
			zerolog.Ctx(ctx).Debug().Err(fe.Last()).Str("model", string(model)).Str("fallback", name).Msg("trying next provider")
		}
		attempt := make(QueryParams, len(params)+1)
		for k, v := range params {
			attempt[k] = v
		}
		attempt[ParamProvider] = name

		res, err := r.Fetch(ctx, model, attempt)
		if err == nil {
			return res, nil
		}
		fe.Attempts = append(fe.Attempts, ProviderAttempt{Provider: name, Err: err})
	}
	if len(fe.Attempts) == 1 {
		return nil, fe.Attempts[0].Err
	}
	return nil, fe
}

// ModelCoverage maps each served model to its provider chain.
func (r *Registry) ModelCoverage() map[ModelType][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ModelType][]string)
	for _, m := range AllModels() {
		if c := r.chain(m); len(c) > 0 {
			out[m] = c
		}
	}
	return out
}

// ProviderAttempt is one failed step of a fallback walk.
type ProviderAttempt struct {
	Provider string
	Err      error
}

// FallbackError reports every provider a fallback walk tried. It unwraps to
// the last attempt's error: the source consulted last decides whether the
// document is missing, rate limited or unreachable.
type FallbackError struct {
	Model    ModelType
	Attempts []ProviderAttempt
}

func (e *FallbackError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Err.Error()
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Model, strings.Join(parts, "; "))
}

// Last returns the error of the last attempt.
func (e *FallbackError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *FallbackError) Unwrap() error { return e.Last() }

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}
