package edgar

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/seenimoa/edgarkpi/pkg/models"
)

// tickerRecord is one entry of company_tickers.json. Older mirrors use "cik"
// and "name" instead of "cik_str" and "title".
type tickerRecord struct {
	Ticker flexString `json:"ticker"`
	CIKStr flexString `json:"cik_str"`
	CIK    flexString `json:"cik"`
	Title  flexString `json:"title"`
	Name   flexString `json:"name"`
}

// ResolveIdentities turns the SEC ticker listing into identities sorted by
// ticker. The payload may be an object of records keyed by position or an
// array of records. Records without a ticker or a numeric CIK are skipped, and
// when a ticker repeats the first occurrence wins. An unparsable payload
// yields an empty result.
func ResolveIdentities(payload []byte) []models.CompanyIdentity {
	seen := make(map[string]bool)
	var out []models.CompanyIdentity

	for _, raw := range records(payload) {
		var rec tickerRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		ticker := strings.ToUpper(strings.TrimSpace(string(rec.Ticker)))
		if ticker == "" {
			continue
		}
		idField := rec.CIKStr
		if idField == "" {
			idField = rec.CIK
		}
		cik, ok := parseID(idField)
		if !ok {
			continue
		}
		if seen[ticker] {
			continue
		}
		seen[ticker] = true

		name := rec.Title
		if name == "" {
			name = rec.Name
		}
		out = append(out, models.CompanyIdentity{
			Ticker: ticker,
			CIK:    cik,
			Name:   strings.TrimSpace(string(name)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// FindCompany looks up ticker in identities sorted by ResolveIdentities.
func FindCompany(identities []models.CompanyIdentity, ticker string) (models.CompanyIdentity, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	i := sort.Search(len(identities), func(i int) bool { return identities[i].Ticker >= ticker })
	if i < len(identities) && identities[i].Ticker == ticker {
		return identities[i], true
	}
	return models.CompanyIdentity{}, false
}

// FindByCIK returns the first identity registered under cik.
func FindByCIK(identities []models.CompanyIdentity, cik int64) (models.CompanyIdentity, bool) {
	for _, id := range identities {
		if id.CIK == cik {
			return id, true
		}
	}
	return models.CompanyIdentity{}, false
}

// SearchCompanies returns identities whose ticker starts with query or whose
// name contains it, case-insensitively. Exact ticker matches come first.
// limit <= 0 means no limit.
func SearchCompanies(identities []models.CompanyIdentity, query string, limit int) []models.CompanyIdentity {
	q := strings.ToUpper(strings.TrimSpace(query))
	var exact, rest []models.CompanyIdentity
	for _, id := range identities {
		switch {
		case q == "":
			rest = append(rest, id)
		case id.Ticker == q:
			exact = append(exact, id)
		case strings.HasPrefix(id.Ticker, q), strings.Contains(strings.ToUpper(id.Name), q):
			rest = append(rest, id)
		}
	}
	out := append(exact, rest...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
