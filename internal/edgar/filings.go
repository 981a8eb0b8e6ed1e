package edgar

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/seenimoa/edgarkpi/pkg/models"
	"github.com/seenimoa/edgarkpi/pkg/utils"
)

// FilingForms are the form types kept in the filing history.
var FilingForms = []string{"10-Q", "10-K", "8-K"}

type submissionsDoc struct {
	CIK     flexString      `json:"cik"`
	Name    flexString      `json:"name"`
	Filings json.RawMessage `json:"filings"`
}

type filingsSection struct {
	Recent json.RawMessage `json:"recent"`
}

// recentFilings holds the parallel arrays of filings.recent.
type recentFilings struct {
	FilingDate      flexStrings `json:"filingDate"`
	ReportDate      flexStrings `json:"reportDate"`
	Form            flexStrings `json:"form"`
	AccessionNumber flexStrings `json:"accessionNumber"`
	PrimaryDocument flexStrings `json:"primaryDocument"`
}

// ExtractFilings reads the recent filing history from a submissions payload,
// keeping 10-Q, 10-K and 8-K forms, newest first. Each row is driven by the
// form array; a shorter sibling array leaves that field absent. An archive
// link is attached only when both the accession number and primary document
// are present. A missing or malformed section yields an empty result.
func ExtractFilings(payload []byte, cik int64) []models.FilingRecord {
	recent, ok := decodeRecent(payload)
	if !ok {
		return nil
	}

	var out []models.FilingRecord
	for i := range recent.Form {
		form := strings.TrimSpace(recent.Form.at(i))
		if !isFilingForm(form) {
			continue
		}
		accession := strings.TrimSpace(recent.AccessionNumber.at(i))
		document := strings.TrimSpace(recent.PrimaryDocument.at(i))
		out = append(out, models.FilingRecord{
			FilingDate:      utils.ParseDate(recent.FilingDate.at(i)),
			ReportDate:      utils.ParseDate(recent.ReportDate.at(i)),
			FormType:        form,
			AccessionNumber: accession,
			PrimaryDocument: document,
			ArchiveURL:      ArchiveURL(cik, accession, document),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].FilingDate, out[j].FilingDate
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})
	return out
}

// SubmissionsName returns the registrant name carried by a submissions payload.
func SubmissionsName(payload []byte) string {
	var doc submissionsDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return ""
	}
	return strings.TrimSpace(string(doc.Name))
}

func decodeRecent(payload []byte) (recentFilings, bool) {
	var doc submissionsDoc
	if err := json.Unmarshal(payload, &doc); err != nil || len(doc.Filings) == 0 {
		return recentFilings{}, false
	}
	var section filingsSection
	if err := json.Unmarshal(doc.Filings, &section); err != nil || len(section.Recent) == 0 {
		return recentFilings{}, false
	}
	var recent recentFilings
	if err := json.Unmarshal(section.Recent, &recent); err != nil {
		return recentFilings{}, false
	}
	return recent, true
}

func isFilingForm(form string) bool {
	for _, f := range FilingForms {
		if form == f {
			return true
		}
	}
	return false
}
