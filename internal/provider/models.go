package provider

// ModelType identifies a kind of upstream document a provider can fetch.
// Each ModelType maps to a specific payload shape (see FetchResult.Data).
type ModelType string

// --- EDGAR JSON (FetchResult.Data is the raw []byte payload) ---
const (
	ModelCompanyTickers     ModelType = "CompanyTickers"
	ModelCompanySubmissions ModelType = "CompanySubmissions"
	ModelCompanyFacts       ModelType = "CompanyFacts"
)

// --- EDGAR documents ---
const (
	ModelFilingFeed     ModelType = "FilingFeed"     // []models.FeedEntry
	ModelFilingDocument ModelType = "FilingDocument" // *models.FilingDocument
)

// AllModels returns all defined model types.
func AllModels() []ModelType {
	return []ModelType{
		ModelCompanyTickers,
		ModelCompanySubmissions,
		ModelCompanyFacts,
		ModelFilingFeed,
		ModelFilingDocument,
	}
}

// ModelCategory maps model types to their category for grouping.
func ModelCategory(m ModelType) string {
	switch m {
	case ModelCompanyTickers:
		return "Reference"
	case ModelCompanySubmissions, ModelFilingFeed, ModelFilingDocument:
		return "Filings"
	case ModelCompanyFacts:
		return "Financial Data"
	default:
		return "Other"
	}
}
