package edgar

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SEC EDGAR endpoints.
const (
	TickersURL      = "https://www.sec.gov/files/company_tickers.json"
	SubmissionsURL  = "https://data.sec.gov/submissions"            // CIK{cik10}.json
	CompanyFactsURL = "https://data.sec.gov/api/xbrl/companyfacts" // CIK{cik10}.json
	ArchivesURL     = "https://www.sec.gov/Archives/edgar/data"
	BrowseURL       = "https://www.sec.gov/cgi-bin/browse-edgar"

	// ArchivesHost is the only host filing documents are fetched from.
	ArchivesHost = "www.sec.gov"
)

// PadCIK renders a CIK as the 10-digit zero-padded form used in data.sec.gov paths.
func PadCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}

// SubmissionsEndpoint returns the submissions JSON URL for cik.
func SubmissionsEndpoint(cik int64) string {
	return fmt.Sprintf("%s/CIK%s.json", SubmissionsURL, PadCIK(cik))
}

// CompanyFactsEndpoint returns the XBRL company facts JSON URL for cik.
func CompanyFactsEndpoint(cik int64) string {
	return fmt.Sprintf("%s/CIK%s.json", CompanyFactsURL, PadCIK(cik))
}

// FeedEndpoint returns the company's Atom filing feed, optionally filtered to one form type.
func FeedEndpoint(cik int64, form string) string {
	q := url.Values{}
	q.Set("action", "getcompany")
	q.Set("CIK", PadCIK(cik))
	q.Set("type", form)
	q.Set("dateb", "")
	q.Set("owner", "include")
	q.Set("count", "40")
	q.Set("output", "atom")
	return BrowseURL + "?" + q.Encode()
}

// ArchiveURL builds the link to a filing's primary document:
//
//	https://www.sec.gov/Archives/edgar/data/{cik}/{accession without dashes}/{document}
//
// It returns "" when the accession number or document is blank.
func ArchiveURL(cik int64, accession, document string) string {
	accession = strings.TrimSpace(accession)
	document = strings.TrimSpace(document)
	if accession == "" || document == "" {
		return ""
	}
	return ArchivesURL + "/" + strconv.FormatInt(cik, 10) + "/" +
		strings.ReplaceAll(accession, "-", "") + "/" + document
}

// IsArchiveURL reports whether raw points at a document under the EDGAR archives.
func IsArchiveURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && strings.EqualFold(u.Host, ArchivesHost) &&
		strings.HasPrefix(u.Path, "/Archives/edgar/data/")
}
