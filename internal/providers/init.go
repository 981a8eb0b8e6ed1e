// Package providers initializes and registers the concrete data providers
// with a provider registry.
package providers

import (
	"github.com/seenimoa/edgarkpi/internal/infra"
	"github.com/seenimoa/edgarkpi/internal/provider"
	"github.com/seenimoa/edgarkpi/internal/providers/localfs"
	"github.com/seenimoa/edgarkpi/internal/providers/sec"
)

// Options selects and configures the providers to register.
type Options struct {
	SEC        sec.Options
	Cache      infra.Cache // shared by the SEC fetchers; nil disables caching
	TTLs       sec.TTLs
	OfflineDir string // when set, localfs is registered first and becomes the default
}

// RegisterAllTo registers the available providers to the given registry.
// Providers already registered under the same name are left in place.
// The SEC provider is registered only when a User-Agent is configured; with
// neither a User-Agent nor an offline directory there is nothing to fetch
// from and sec.ErrMissingUserAgent is returned.
func RegisterAllTo(reg *provider.Registry, opts Options) error {
	registered := 0

	// --- Local directory (offline) ---
	if opts.OfflineDir != "" {
		lp := localfs.New(opts.OfflineDir)
		if err := lp.Init(nil); err != nil {
			return err
		}
		if err := registerOnce(reg, lp); err != nil {
			return err
		}
		registered++
	}

	// --- SEC EDGAR (requires a User-Agent) ---
	if opts.SEC.UserAgent != "" {
		client, err := sec.NewClient(opts.SEC)
		if err != nil {
			return err
		}
		sp := sec.New(client, opts.Cache, opts.TTLs)
		if err := sp.Init(map[string]string{sec.CredentialUserAgent: client.UserAgent()}); err != nil {
			return err
		}
		if err := registerOnce(reg, sp); err != nil {
			return err
		}
		registered++
	}

	if registered == 0 {
		return sec.ErrMissingUserAgent
	}
	return nil
}

func registerOnce(reg *provider.Registry, p provider.Provider) error {
	if _, err := reg.Get(p.Info().Name); err == nil {
		return nil
	}
	return reg.Register(p)
}
