// Package localfs serves EDGAR JSON payloads from a local directory laid out
// like the SEC bulk downloads:
//
//	company_tickers.json
//	submissions/CIK{cik10}.json
//	companyfacts/CIK{cik10}.json
//
// It lets the tracker run offline, against fixtures or a mirrored snapshot.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/internal/provider"
	"github.com/seenimoa/edgarkpi/internal/providers/sec"
)

const providerName = "localfs"

// Provider implements provider.Provider over a directory.
type Provider struct {
	provider.BaseProvider
	root string
}

// New creates a provider rooted at dir.
func New(dir string) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Offline EDGAR payloads from a local directory",
			"https://www.sec.gov/dera/data",
			nil,
		),
		root: dir,
	}

	p.RegisterFetcher(&fileFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.ModelCompanyTickers,
			"Ticker listing from company_tickers.json", nil, nil),
		root: dir,
		path: func(provider.QueryParams) (string, error) { return "company_tickers.json", nil },
	})
	p.RegisterFetcher(&fileFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.ModelCompanySubmissions,
			"Filing history from submissions/", []string{provider.ParamCIK}, nil),
		root: dir,
		path: cikFile("submissions"),
	})
	p.RegisterFetcher(&fileFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.ModelCompanyFacts,
			"Company facts from companyfacts/", []string{provider.ParamCIK}, nil),
		root: dir,
		path: cikFile("companyfacts"),
	})
	return p
}

// Root returns the data directory.
func (p *Provider) Root() string { return p.root }

// Ping checks the data directory exists.
func (p *Provider) Ping(ctx context.Context) error {
	st, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("localfs: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("localfs: %s is not a directory", p.root)
	}
	return nil
}

type fileFetcher struct {
	provider.BaseFetcher
	root string
	path func(provider.QueryParams) (string, error)
}

func (f *fileFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	rel, err := f.path(params)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(filepath.Join(f.root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &provider.ErrNotFound{Provider: providerName, Model: f.ModelType(), Key: rel}
	}
	if err != nil {
		return nil, fmt.Errorf("localfs read %s: %w", rel, err)
	}
	return provider.NewResult(body), nil
}

func cikFile(dir string) func(provider.QueryParams) (string, error) {
	return func(params provider.QueryParams) (string, error) {
		cik, err := sec.ParseCIKParam(params)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "CIK"+edgar.PadCIK(cik)+".json"), nil
	}
}
