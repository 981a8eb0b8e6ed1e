package fundamental

import (
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/edgarkpi/internal/edgar"
	"github.com/seenimoa/edgarkpi/pkg/models"
	"github.com/seenimoa/edgarkpi/pkg/utils"
)

// periodicForms are the forms whose facts feed the quarterly series.
var periodicForms = map[string]bool{"10-Q": true, "10-K": true}

// SelectUnit picks the unit to read a concept in: the first preferred unit
// that is available, otherwise the only available unit when there is exactly
// one. It reports false when neither applies.
func SelectUnit(available, preferred []string) (string, bool) {
	have := make(map[string]bool, len(available))
	for _, u := range available {
		have[u] = true
	}
	for _, u := range preferred {
		if have[u] {
			return u, true
		}
	}
	if len(available) == 1 {
		return available[0], true
	}
	return "", false
}

// PeriodLabel returns the coverage frame when one was reported, and otherwise
// approximates it with the calendar quarter of end, e.g. "2024Q2". The
// approximation ignores non-calendar fiscal years.
func PeriodLabel(end time.Time, frame string) string {
	if f := strings.TrimSpace(frame); f != "" {
		return f
	}
	return utils.QuarterLabel(end)
}

// NormalizeConcept extracts one concept as a series with a single point per
// period end, ascending. Only 10-Q and 10-K facts are used, and when a period
// was reported more than once the latest filing wins; on equal filing dates
// the record appearing later in the payload wins. Facts without a usable
// period end are dropped, and a non-numeric value leaves the point's Value nil.
// An absent concept or unit yields an empty series.
func NormalizeConcept(facts *edgar.CompanyFacts, def ConceptDef) models.NormalizedSeries {
	series := models.NormalizedSeries{Label: def.Label, Reference: def.Reference()}

	concept, ok := facts.Concept(def.Taxonomy, def.Tag)
	if !ok {
		return series
	}
	unit, ok := SelectUnit(concept.UnitNames(), def.Units)
	if !ok {
		return series
	}

	series.Points = normalizeRecords(concept.Units[unit])
	if len(series.Points) > 0 {
		series.Unit = unit
	}
	return series
}

func normalizeRecords(recs []edgar.FactRecord) []models.SeriesPoint {
	latest := make(map[time.Time]edgar.FactRecord)
	for _, rec := range recs {
		if !periodicForms[rec.Form] || rec.End.IsZero() {
			continue
		}
		// Zero filed dates sort before every real date, so they rank oldest.
		if cur, ok := latest[rec.End]; ok && rec.Filed.Before(cur.Filed) {
			continue
		}
		latest[rec.End] = rec
	}

	points := make([]models.SeriesPoint, 0, len(latest))
	for _, rec := range latest {
		p := models.SeriesPoint{
			PeriodLabel: PeriodLabel(rec.End, rec.Frame),
			PeriodEnd:   rec.End,
			FormType:    rec.Form,
			FiledDate:   rec.Filed,
		}
		if rec.Numeric {
			v := rec.Value
			p.Value = &v
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].PeriodEnd.Before(points[j].PeriodEnd) })
	return points
}
