// Package matching decides which pharmacies can fill an extracted
// prescription. A medicine matches an inventory entry when the entry's name
// contains the prescribed name, ignoring case, and the entry is active and in
// stock.
package matching

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"medeasy/marketplace/domain"
)

// ManualVerificationNote marks medicines no pharmacy carries.
const ManualVerificationNote = "no matches — manual verification required"

// ErrNoMatchesFound accompanies a report in which nothing matched anywhere.
// The report is still valid output.
var ErrNoMatchesFound = errors.New("no prescribed medicine is available at any pharmacy")

// Scorer rates how close an inventory name is to a prescribed name. Scores
// only order hits; they never decide whether something matches.
type Scorer func(prescribed, candidate string) float64

// Catalog is active inventory grouped by pharmacy id.
type Catalog map[int64][]domain.InventoryEntry

// GroupByPharmacy builds a Catalog from a flat entry list.
func GroupByPharmacy(entries []domain.InventoryEntry) Catalog {
	c := make(Catalog)
	for _, e := range entries {
		c[e.PharmacyID] = append(c[e.PharmacyID], e)
	}
	return c
}

// Hit is an inventory entry that satisfies one prescribed medicine.
type Hit struct {
	domain.InventoryEntry
	Medicine   string  `json:"medicine"`
	Exact      bool    `json:"exact"`
	Similarity float64 `json:"similarity,omitempty"`
}

// PharmacyMatch is one pharmacy's coverage of the prescription.
type PharmacyMatch struct {
	PharmacyID         int64           `json:"pharmacy_id"`
	MatchedCount       int             `json:"matched_count"`
	TotalMedicines     int             `json:"total_medicines"`
	CoveragePercentage float64         `json:"coverage_percentage"`
	AvailableMedicines []Hit           `json:"available_medicines"`
	MissingMedicines   []string        `json:"missing_medicines"`
	TotalValue         decimal.Decimal `json:"total_value"`
}

// FullyCovered reports whether every prescribed medicine is in stock here.
func (p PharmacyMatch) FullyCovered() bool {
	return p.TotalMedicines > 0 && p.MatchedCount == p.TotalMedicines
}

// Unmatched is a prescribed medicine that no pharmacy can supply.
type Unmatched struct {
	Name string `json:"name"`
	Note string `json:"note"`
}

// Report ranks pharmacies by coverage, then by total value ascending.
type Report struct {
	TotalMedicines int             `json:"total_medicines"`
	Pharmacies     []PharmacyMatch `json:"pharmacies"`
	Unmatched      []Unmatched     `json:"unmatched"`
}

// Best returns the top ranked pharmacy with at least one match.
func (r Report) Best() (PharmacyMatch, bool) {
	if len(r.Pharmacies) == 0 || r.Pharmacies[0].MatchedCount == 0 {
		return PharmacyMatch{}, false
	}
	return r.Pharmacies[0], true
}

type Option func(*Engine)

// WithScorer ranks multiple hits for one medicine by score after exact
// name matches.
func WithScorer(s Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

type Engine struct {
	scorer Scorer
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type wanted struct {
	name     string
	needle   string
	quantity int64
}

// Match runs the prescription against every pharmacy in the catalog.
// When nothing matches anywhere it returns the report with ErrNoMatchesFound.
func (e *Engine) Match(medicines []domain.ExtractedMedicine, catalog Catalog) (Report, error) {
	wants, blanks := distinct(medicines)
	report := Report{
		TotalMedicines: len(wants),
		Pharmacies:     make([]PharmacyMatch, 0, len(catalog)),
	}

	matchedAnywhere := make(map[string]bool, len(wants))
	for _, pharmacyID := range sortedPharmacies(catalog) {
		pm := e.matchPharmacy(pharmacyID, wants, catalog[pharmacyID])
		for _, h := range pm.AvailableMedicines {
			matchedAnywhere[strings.ToLower(h.Medicine)] = true
		}
		report.Pharmacies = append(report.Pharmacies, pm)
	}

	sort.SliceStable(report.Pharmacies, func(i, j int) bool {
		a, b := report.Pharmacies[i], report.Pharmacies[j]
		if a.CoveragePercentage != b.CoveragePercentage {
			return a.CoveragePercentage > b.CoveragePercentage
		}
		if !a.TotalValue.Equal(b.TotalValue) {
			return a.TotalValue.LessThan(b.TotalValue)
		}
		return a.PharmacyID < b.PharmacyID
	})

	for _, w := range wants {
		if !matchedAnywhere[w.needle] {
			report.Unmatched = append(report.Unmatched, Unmatched{Name: w.name, Note: ManualVerificationNote})
		}
	}
	for i := 0; i < blanks; i++ {
		report.Unmatched = append(report.Unmatched, Unmatched{Name: "", Note: ManualVerificationNote})
	}

	if len(matchedAnywhere) == 0 {
		return report, ErrNoMatchesFound
	}
	return report, nil
}

func (e *Engine) matchPharmacy(pharmacyID int64, wants []wanted, entries []domain.InventoryEntry) PharmacyMatch {
	pm := PharmacyMatch{
		PharmacyID:         pharmacyID,
		TotalMedicines:     len(wants),
		AvailableMedicines: []Hit{},
		MissingMedicines:   []string{},
		TotalValue:         decimal.Zero,
	}

	for _, w := range wants {
		hits := e.find(w, entries)
		if len(hits) == 0 {
			pm.MissingMedicines = append(pm.MissingMedicines, w.name)
			continue
		}
		pm.MatchedCount++
		pm.TotalValue = pm.TotalValue.Add(hits[0].Price.Mul(decimal.NewFromInt(w.quantity)))
		pm.AvailableMedicines = append(pm.AvailableMedicines, hits...)
	}

	pm.CoveragePercentage = Coverage(pm.MatchedCount, pm.TotalMedicines)
	return pm
}

func (e *Engine) find(w wanted, entries []domain.InventoryEntry) []Hit {
	var hits []Hit
	for _, entry := range entries {
		if !entry.Available() {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		if !strings.Contains(name, w.needle) {
			continue
		}
		h := Hit{InventoryEntry: entry, Medicine: w.name, Exact: name == w.needle}
		if e.scorer != nil {
			h.Similarity = e.scorer(w.name, entry.Name)
		}
		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Exact != b.Exact {
			return a.Exact
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Price.Equal(b.Price) {
			return a.Price.LessThan(b.Price)
		}
		return a.ID < b.ID
	})
	return hits
}

// Coverage is matched/total as a percentage rounded to one decimal place.
func Coverage(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(matched)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1)
	return pct.InexactFloat64()
}

// distinct folds repeated names together, summing their quantities, and sets
// aside blank names, which cannot be matched.
func distinct(medicines []domain.ExtractedMedicine) ([]wanted, int) {
	var (
		out    []wanted
		blanks int
		index  = make(map[string]int)
	)
	for _, m := range medicines {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			blanks++
			continue
		}
		qty := m.Quantity
		if qty <= 0 {
			qty = 1
		}
		needle := strings.ToLower(name)
		if i, ok := index[needle]; ok {
			out[i].quantity += qty
			continue
		}
		index[needle] = len(out)
		out = append(out, wanted{name: name, needle: needle, quantity: qty})
	}
	return out, blanks
}

func sortedPharmacies(c Catalog) []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
