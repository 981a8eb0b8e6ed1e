// Package provider abstracts where EDGAR documents come from. A Provider
// bundles one Fetcher per document kind (ModelType); the Registry routes a
// request to the first provider that can serve it and falls back along the
// chain when a source fails.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ProviderCredential describes a credential a provider needs before it may
// be registered.
type ProviderCredential struct {
	Name        string `json:"name"` // e.g. "user_agent"
	Description string `json:"description"`
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // e.g. "EDGARKPI_SEC_USER_AGENT"
}

// ProviderInfo is the static description of a provider.
type ProviderInfo struct {
	Name        string               `json:"name"` // "sec", "localfs"
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Models      []ModelType          `json:"models"`
}

// Provider is a source of EDGAR documents.
type Provider interface {
	Info() ProviderInfo

	// Init validates and stores credentials. It is called once, before
	// Register.
	Init(credentials map[string]string) error

	// Fetcher returns the fetcher for model, or nil when unsupported.
	Fetcher(model ModelType) Fetcher

	SupportedModels() []ModelType

	// Ping checks that the source is reachable.
	Ping(ctx context.Context) error
}

// QueryParams carries the request for one document:
//   - "cik"      SEC registry identifier, decimal without padding
//   - "form"     form type filter, e.g. "10-Q"
//   - "url"      archive document URL
//   - "provider" provider to ask first
type QueryParams map[string]string

const (
	ParamCIK      = "cik"
	ParamForm     = "form"
	ParamURL      = "url"
	ParamProvider = "provider"
)

// FetchResult is a fetched document plus where and when it came from.
type FetchResult struct {
	Provider  string    `json:"provider"`
	Model     ModelType `json:"model"`
	Data      any       `json:"data"` // typed per model, see Fetcher.Fetch
	FetchedAt time.Time `json:"fetched_at"`
	Cached    bool      `json:"cached"`
}

// Fetcher retrieves one kind of document.
type Fetcher interface {
	ModelType() ModelType
	Description() string
	RequiredParams() []string
	OptionalParams() []string

	// Fetch returns the document for params. Data is
	//   - []byte for CompanyTickers, CompanySubmissions and CompanyFacts
	//   - []models.FeedEntry for FilingFeed
	//   - *models.FilingDocument for FilingDocument
	Fetch(ctx context.Context, params QueryParams) (*FetchResult, error)
}

// ErrProviderNotFound is returned for an unknown provider name, or with an
// empty Name when no registered provider serves Model.
type ErrProviderNotFound struct {
	Name  string
	Model ModelType
}

func (e *ErrProviderNotFound) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("no provider serves %s", e.Model)
	}
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrModelNotSupported is returned when a provider has no fetcher for a model.
type ErrModelNotSupported struct {
	Provider string
	Model    ModelType
}

func (e *ErrModelNotSupported) Error() string {
	return fmt.Sprintf("provider %q does not support %s", e.Provider, e.Model)
}

// ErrNotFound means the provider has no such document. The registry moves
// on to the next provider.
type ErrNotFound struct {
	Provider string
	Model    ModelType
	Key      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %q has no %s for %q", e.Provider, e.Model, e.Key)
}

// ErrMissingParam is returned when a required query parameter is empty.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidCredentials is returned by Init.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ValidateParams checks that every required key is present and non-empty.
func ValidateParams(params QueryParams, required []string) error {
	for _, key := range required {
		if params[key] == "" {
			return &ErrMissingParam{Param: key}
		}
	}
	return nil
}
