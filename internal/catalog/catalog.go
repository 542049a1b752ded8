// Package catalog loads the vehicle inventory and ranks candidates against a
// buyer's stated need, budget, and preferences.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Vehicle is one inventory row.
type Vehicle struct {
	Brand string  `json:"brand"`
	Model string  `json:"model"`
	Year  int     `json:"year"`
	Price float64 `json:"price"`
	Type  string  `json:"type"` // suv, sedan, hatchback, pickup
}

// Matcher holds an immutable inventory snapshot. Reload swaps the whole
// snapshot atomically so concurrent Find calls never see a partial load.
type Matcher struct {
	path     string
	vehicles atomic.Pointer[[]Vehicle]
}

// needTypes maps declared needs to the vehicle types that satisfy them.
var needTypes = map[string][]string{
	"family":  {"suv", "minivan"},
	"city":    {"hatchback", "sedan", "compact"},
	"work":    {"pickup", "sedan"},
	"suv":     {"suv"},
	"sedan":   {"sedan"},
	"compact": {"hatchback", "compact"},
	"luxury":  {"sedan", "suv"},
}

// NewMatcher loads the CSV at path. The file must have a header row with
// brand, model, year, price, type columns.
func NewMatcher(path string) (*Matcher, error) {
	m := &Matcher{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMatcherFromVehicles builds a matcher over a fixed slice, for tests and
// embedded inventories.
func NewMatcherFromVehicles(vehicles []Vehicle) *Matcher {
	m := &Matcher{}
	snapshot := make([]Vehicle, len(vehicles))
	copy(snapshot, vehicles)
	m.vehicles.Store(&snapshot)
	return m
}

// Reload re-reads the CSV and replaces the inventory snapshot.
func (m *Matcher) Reload() error {
	if m.path == "" {
		return nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("catalog: open %s: %w", m.path, err)
	}
	defer f.Close()

	vehicles, err := parseCSV(f)
	if err != nil {
		return err
	}
	m.vehicles.Store(&vehicles)
	return nil
}

func parseCSV(r io.Reader) ([]Vehicle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"brand", "model", "year", "price", "type"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("catalog: missing column %q", required)
		}
	}

	var vehicles []Vehicle
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read row: %w", err)
		}
		v, ok := mapRow(row, idx)
		if !ok {
			continue
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

func mapRow(row []string, idx map[string]int) (Vehicle, bool) {
	get := func(col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	year, err := strconv.Atoi(get("year"))
	if err != nil || year <= 0 {
		return Vehicle{}, false
	}
	price, err := strconv.ParseFloat(get("price"), 64)
	if err != nil || price <= 0 {
		return Vehicle{}, false
	}
	v := Vehicle{
		Brand: get("brand"),
		Model: get("model"),
		Year:  year,
		Price: price,
		Type:  strings.ToLower(get("type")),
	}
	if v.Brand == "" || v.Model == "" {
		return Vehicle{}, false
	}
	return v, true
}

// Find returns up to three vehicles under the budget ceiling matching the
// declared need and preferences. Ranking favors the closest budget fit;
// ties keep catalog order. An empty result is a normal outcome.
func (m *Matcher) Find(need string, budget float64, preferences string) []Vehicle {
	snapshot := m.vehicles.Load()
	if snapshot == nil || budget <= 0 {
		return nil
	}

	types := needTypes[strings.ToLower(strings.TrimSpace(need))]
	prefTokens := tokenize(preferences)

	type candidate struct {
		v     Vehicle
		order int
	}
	var candidates []candidate
	for i, v := range *snapshot {
		if v.Price > budget {
			continue
		}
		if len(types) > 0 && !containsType(types, v.Type) {
			continue
		}
		candidates = append(candidates, candidate{v: v, order: i})
	}

	// Preferences narrow the set only when at least one candidate matches;
	// attributes like transmission are not modeled on the record, so an
	// unmatchable preference must not empty the result.
	if len(prefTokens) > 0 {
		var preferred []candidate
		for _, c := range candidates {
			if matchesPreference(c.v, prefTokens) {
				preferred = append(preferred, c)
			}
		}
		if len(preferred) > 0 {
			candidates = preferred
		}
	}

	// Closest budget fit first; stable on catalog order.
	sort.SliceStable(candidates, func(i, j int) bool {
		di := budget - candidates[i].v.Price
		dj := budget - candidates[j].v.Price
		if di != dj {
			return di < dj
		}
		return candidates[i].order < candidates[j].order
	})

	limit := 3
	if len(candidates) < limit {
		limit = len(candidates)
	}
	out := make([]Vehicle, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.v)
	}
	return out
}

func containsType(types []string, t string) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func matchesPreference(v Vehicle, tokens []string) bool {
	haystack := strings.ToLower(v.Brand + " " + v.Model + " " + v.Type)
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// Size reports how many vehicles the current snapshot holds.
func (m *Matcher) Size() int {
	snapshot := m.vehicles.Load()
	if snapshot == nil {
		return 0
	}
	return len(*snapshot)
}
