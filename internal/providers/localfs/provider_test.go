package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/seenimoa/edgarkpi/internal/provider"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalFetchers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "company_tickers.json"), `{"0":{"ticker":"AAPL","cik_str":320193,"title":"Apple Inc."}}`)
	writeFile(t, filepath.Join(dir, "submissions", "CIK0000320193.json"), `{"name":"Apple Inc."}`)

	p := New(dir)
	if err := p.Init(nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if len(p.SupportedModels()) != 3 {
		t.Errorf("expected 3 models, got %v", p.SupportedModels())
	}

	tests := []struct {
		name   string
		model  provider.ModelType
		params provider.QueryParams
		want   string
	}{
		{"tickers", provider.ModelCompanyTickers, nil, `{"0":{"ticker":"AAPL","cik_str":320193,"title":"Apple Inc."}}`},
		{"unpadded cik", provider.ModelCompanySubmissions, provider.QueryParams{provider.ParamCIK: "320193"}, `{"name":"Apple Inc."}`},
		{"padded cik", provider.ModelCompanySubmissions, provider.QueryParams{provider.ParamCIK: "0000320193"}, `{"name":"Apple Inc."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Fetcher(tt.model).Fetch(context.Background(), tt.params)
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if got := string(res.Data.([]byte)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLocalMissingFile(t *testing.T) {
	p := New(t.TempDir())
	_, err := p.Fetcher(provider.ModelCompanyFacts).Fetch(context.Background(), provider.QueryParams{provider.ParamCIK: "1"})
	var nf *provider.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if nf.Key != filepath.Join("companyfacts", "CIK0000000001.json") {
		t.Errorf("unexpected key %q", nf.Key)
	}
}

func TestLocalPingMissingDir(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "nope"))
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLocalFallbackToNextProvider(t *testing.T) {
	full := t.TempDir()
	writeFile(t, filepath.Join(full, "companyfacts", "CIK0000000042.json"), `{"cik":42}`)

	reg := provider.NewRegistry()
	empty := New(t.TempDir())
	if err := reg.Register(empty); err != nil {
		t.Fatal(err)
	}
	// a second localfs instance under another name stands in for the network provider
	src := New(full)
	second := &Provider{BaseProvider: provider.NewBaseProvider("mirror", "", "", nil), root: full}
	for _, m := range src.SupportedModels() {
		second.RegisterFetcher(src.Fetcher(m))
	}
	if err := reg.Register(second); err != nil {
		t.Fatal(err)
	}

	res, err := reg.FetchWithFallback(context.Background(), provider.ModelCompanyFacts, provider.QueryParams{provider.ParamCIK: "42"})
	if err != nil {
		t.Fatalf("FetchWithFallback: %v", err)
	}
	if res.Provider != "mirror" {
		t.Errorf("expected mirror to serve the request, got %s", res.Provider)
	}
}
