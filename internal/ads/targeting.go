package ads

import "strings"

// Sub-check weights for the optional targeting dimensions. The city gate is
// pass/fail and contributes no weight of its own.
const (
	weightNeighborhood = 0.20
	weightCategory     = 0.25
	weightTimeOfDay    = 0.15
	weightDayOfWeek    = 0.10
	weightPriceRange   = 0.15
	weightKeyword      = 0.15
)

// MatchTargeting scores a campaign's targeting rule against the request
// context. The city list is a hard gate: if set and the request city is not
// in it, the campaign is out regardless of other dimensions. The remaining
// dimensions are optional weighted checks; a rule that specifies none of
// them matches everything in its cities with a full score.
func MatchTargeting(t Targeting, ctx RequestContext) (matched bool, score float64) {
	if len(t.Cities) > 0 && !containsFold(t.Cities, ctx.City) {
		return false, 0
	}

	var earned, applicable float64

	if len(t.Neighborhoods) > 0 {
		applicable += weightNeighborhood
		if containsFold(t.Neighborhoods, ctx.Neighborhood) {
			earned += weightNeighborhood
		}
	}
	if len(t.Categories) > 0 {
		applicable += weightCategory
		if containsFold(t.Categories, ctx.Category) {
			earned += weightCategory
		}
	}
	if t.HourStart != 0 || t.HourEnd != 0 {
		applicable += weightTimeOfDay
		if hourInRange(ctx.Now.Hour(), t.HourStart, t.HourEnd) {
			earned += weightTimeOfDay
		}
	}
	if len(t.DaysOfWeek) > 0 {
		applicable += weightDayOfWeek
		for _, d := range t.DaysOfWeek {
			if d == ctx.Now.Weekday() {
				earned += weightDayOfWeek
				break
			}
		}
	}
	if t.PriceMin != 0 || t.PriceMax != 0 {
		applicable += weightPriceRange
		if ctx.PriceContext >= t.PriceMin && (t.PriceMax == 0 || ctx.PriceContext <= t.PriceMax) {
			earned += weightPriceRange
		}
	}
	if len(t.Keywords) > 0 {
		applicable += weightKeyword
		if matchesKeyword(t.Keywords, ctx.Query) {
			earned += weightKeyword
		}
	}

	if applicable == 0 {
		return true, 1.0
	}
	return true, earned / applicable
}

// hourInRange checks an inclusive-exclusive hour window, wrapping midnight
// so a 22-2 rule covers late-night slots.
func hourInRange(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func matchesKeyword(keywords []string, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(q, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
