package edgar

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/edgarkpi/pkg/utils"
)

// ErrMalformedFacts is returned when a company facts payload is not a JSON object.
var ErrMalformedFacts = errors.New("edgar: company facts payload is not a JSON object")

// FactRecord is one reported value of a concept in one unit. Every field is
// optional upstream; zero times and empty strings mean absent.
type FactRecord struct {
	Start         time.Time
	End           time.Time
	Value         float64
	Numeric       bool // false when "val" was missing or not a number
	Accession     string
	FiscalYear    int
	HasFiscalYear bool
	FiscalPeriod  string
	Form          string
	Filed         time.Time
	Frame         string
}

type factRecordJSON struct {
	Start flexString `json:"start"`
	End   flexString `json:"end"`
	Val   flexString `json:"val"`
	Accn  flexString `json:"accn"`
	FY    flexString `json:"fy"`
	FP    flexString `json:"fp"`
	Form  flexString `json:"form"`
	Filed flexString `json:"filed"`
	Frame flexString `json:"frame"`
}

// UnmarshalJSON decodes a fact record, treating mistyped fields as absent.
// It fails only when b is not a JSON object.
func (r *FactRecord) UnmarshalJSON(b []byte) error {
	var raw factRecordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = FactRecord{
		Start:        utils.ParseDate(string(raw.Start)),
		End:          utils.ParseDate(string(raw.End)),
		Accession:    strings.TrimSpace(string(raw.Accn)),
		FiscalPeriod: strings.TrimSpace(string(raw.FP)),
		Form:         strings.TrimSpace(string(raw.Form)),
		Filed:        utils.ParseDate(string(raw.Filed)),
		Frame:        strings.TrimSpace(string(raw.Frame)),
	}
	r.Value, r.Numeric = parseNumber(raw.Val)
	if fy, ok := parseID(raw.FY); ok {
		r.FiscalYear, r.HasFiscalYear = int(fy), true
	}
	return nil
}

// Concept is one XBRL concept with its records grouped by unit of measure.
type Concept struct {
	Label       string
	Description string
	Units       map[string][]FactRecord
}

// UnitNames returns the concept's units in sorted order.
func (c Concept) UnitNames() []string {
	names := make([]string, 0, len(c.Units))
	for u := range c.Units {
		names = append(names, u)
	}
	sort.Strings(names)
	return names
}

type conceptJSON struct {
	Label       flexString                 `json:"label"`
	Description flexString                 `json:"description"`
	Units       map[string]json.RawMessage `json:"units"`
}

// CompanyFacts is a decoded XBRL company facts payload. Concepts are decoded
// on first access, since a payload carries hundreds of tags and only a few
// are ever read.
type CompanyFacts struct {
	CIK        int64
	EntityName string

	taxonomies map[string]map[string]json.RawMessage
}

type companyFactsJSON struct {
	CIK        flexString      `json:"cik"`
	EntityName flexString      `json:"entityName"`
	Facts      json.RawMessage `json:"facts"`
}

// ParseCompanyFacts decodes the outer structure of a company facts payload.
// A malformed taxonomy section is dropped; only a payload that is not a JSON
// object at all is an error.
func ParseCompanyFacts(payload []byte) (*CompanyFacts, error) {
	var doc companyFactsJSON
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, ErrMalformedFacts
	}

	cf := &CompanyFacts{
		EntityName: strings.TrimSpace(string(doc.EntityName)),
		taxonomies: make(map[string]map[string]json.RawMessage),
	}
	if cik, ok := parseID(doc.CIK); ok {
		cf.CIK = cik
	}

	var sections map[string]json.RawMessage
	if len(doc.Facts) > 0 && json.Unmarshal(doc.Facts, &sections) == nil {
		for taxonomy, raw := range sections {
			var tags map[string]json.RawMessage
			if err := json.Unmarshal(raw, &tags); err != nil {
				continue
			}
			cf.taxonomies[taxonomy] = tags
		}
	}
	return cf, nil
}

// Concept returns the concept filed under taxonomy:tag. A unit whose value is
// not an array is kept with no records; records that are not objects are skipped.
func (f *CompanyFacts) Concept(taxonomy, tag string) (Concept, bool) {
	if f == nil {
		return Concept{}, false
	}
	raw, ok := f.taxonomies[taxonomy][tag]
	if !ok {
		return Concept{}, false
	}
	var cj conceptJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return Concept{}, false
	}

	c := Concept{
		Label:       string(cj.Label),
		Description: string(cj.Description),
		Units:       make(map[string][]FactRecord, len(cj.Units)),
	}
	for unit, rawList := range cj.Units {
		var items []json.RawMessage
		_ = json.Unmarshal(rawList, &items)
		recs := make([]FactRecord, 0, len(items))
		for _, item := range items {
			var rec FactRecord
			if err := json.Unmarshal(item, &rec); err != nil {
				continue
			}
			recs = append(recs, rec)
		}
		c.Units[unit] = recs
	}
	return c, true
}

// Taxonomies lists the taxonomies present, sorted.
func (f *CompanyFacts) Taxonomies() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.taxonomies))
	for t := range f.taxonomies {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Tags lists the concept tags of one taxonomy, sorted.
func (f *CompanyFacts) Tags(taxonomy string) []string {
	if f == nil {
		return nil
	}
	tags := f.taxonomies[taxonomy]
	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
