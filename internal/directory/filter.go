package directory

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Query describes a directory filter. Zero-value fields match everything.
type Query struct {
	// Region filters by exact region (case-insensitive).
	Region string

	// Status filters by organization status.
	Status Status

	// Category filters by organization category.
	Category Category

	// Search matches against name and services description. Exact substring
	// matches are preferred; fuzzy matches catch small misspellings.
	Search string

	// BudgetOnly restricts results to state-budget funded organizations.
	BudgetOnly bool
}

// fuzzyDistance is the maximum Damerau-Levenshtein distance for a search word
// to still count as a match against a directory word.
const fuzzyDistance = 2

// Filter returns the organizations in orgs that match q. The input slice is
// not modified; results preserve input order.
func Filter(orgs []Organization, q Query) []Organization {
	var out []Organization
	for _, o := range orgs {
		if matches(o, q) {
			out = append(out, o)
		}
	}
	return out
}

func matches(o Organization, q Query) bool {
	if q.Region != "" && !strings.EqualFold(o.Region, q.Region) {
		return false
	}
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	if q.Category != "" && o.Category != q.Category {
		return false
	}
	if q.BudgetOnly && !o.Budget {
		return false
	}
	if q.Search != "" && !matchesSearch(o, q.Search) {
		return false
	}
	return true
}

// matchesSearch reports whether the search string matches the organization's
// name or services description, first by substring then by fuzzy word
// comparison.
func matchesSearch(o Organization, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}

	haystack := strings.ToLower(o.Name + " " + o.Services)
	if strings.Contains(haystack, search) {
		return true
	}

	// Fuzzy comparison word by word, so "psichological" still finds
	// "psychological support".
	words := strings.Fields(haystack)
	for _, sw := range strings.Fields(search) {
		found := false
		for _, hw := range words {
			if matchr.DamerauLevenshtein(sw, hw) <= fuzzyDistance {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
