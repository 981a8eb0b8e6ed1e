package models

import "time"

// CompanySnapshot is everything one fetch cycle produces for a company.
type CompanySnapshot struct {
	CycleID   string          `json:"cycle_id"`
	Company   CompanyIdentity `json:"company"`
	Filings   []FilingRecord  `json:"filings"`
	Panel     *KPIPanel       `json:"panel"`
	Audit     []AuditEntry    `json:"audit"`
	FetchedAt time.Time       `json:"fetched_at"`
	Warnings  []string        `json:"warnings,omitempty"` // non-fatal upstream gaps
}

// Unit returns the resolved unit of a concept column, or "".
func (s *CompanySnapshot) Unit(concept string) string {
	if s == nil {
		return ""
	}
	for _, a := range s.Audit {
		if a.Concept == concept {
			return a.Unit
		}
	}
	return ""
}

// ProviderStatus is the outcome of pinging one data provider.
type ProviderStatus struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}
