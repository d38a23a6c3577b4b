// Package intention models what a user wants right now: mood, time window,
// budget, distance, and companions. An Intention is derived once at the start
// of a request and is immutable afterwards.
package intention

import (
	"strconv"
	"strings"
	"time"
)

// Source identifies where an intention came from.
type Source string

const (
	// SourceCookie means the intention was restored from a browser cookie.
	SourceCookie Source = "cookie"
	// SourceProfile means the intention was loaded from a stored profile.
	SourceProfile Source = "profile"
	// SourceInline means the intention was stated explicitly in the request.
	SourceInline Source = "inline"
	// SourceInferred means the intention was inferred from behavior.
	SourceInferred Source = "inferred"
)

// BudgetTier buckets how much the user is willing to spend.
type BudgetTier string

const (
	BudgetFree    BudgetTier = "free"
	BudgetCasual  BudgetTier = "casual"
	BudgetTreat   BudgetTier = "treat"
	BudgetSplurge BudgetTier = "splurge"
)

// PriceCeiling returns the maximum comfortable price for a budget tier.
// Splurge has no ceiling and returns a negative value meaning "no limit".
func (b BudgetTier) PriceCeiling() float64 {
	switch b {
	case BudgetFree:
		return 0
	case BudgetCasual:
		return 25
	case BudgetTreat:
		return 75
	case BudgetSplurge:
		return -1
	default:
		return 25
	}
}

// Intention is the structured representation of a single request's intent.
// Zero values mean "unspecified": UntilMinutes == 0 and DistanceKm == 0
// place no constraint.
type Intention struct {
	City         string
	Now          time.Time
	Mood         string
	UntilMinutes int
	DistanceKm   float64
	Budget       BudgetTier
	Companions   string
	Source       Source
	SessionID    string
	UserID       string
}

// moodQueries is the fixed mood to retrieval-query mapping. Unknown moods
// fall back to the mood word itself so retrieval still has something to chew on.
var moodQueries = map[string]string{
	"electric": "live music dancing late night energy",
	"chill":    "relaxed low-key cozy quiet evening",
	"curious":  "talks exhibits workshops something new",
	"social":   "meetups group hangouts games trivia",
	"romantic": "date night intimate candlelit two people",
	"active":   "sports climbing run skate outdoors",
	"artsy":    "gallery openings performance art film",
	"hungry":   "food pop-ups markets tastings street food",
}

// QueryForMood returns the retrieval query string for a mood.
// Unknown moods return the mood itself; an empty mood returns a generic query.
func QueryForMood(mood string) string {
	if q, ok := moodQueries[mood]; ok {
		return q
	}
	if mood != "" {
		return mood
	}
	return "things to do tonight"
}

// ParseTokens derives an Intention from free-form slot tokens such as
// "mood:electric", "km:5", "until:120", "budget:casual", "with:friends".
// Malformed tokens are skipped rather than rejected; the caller validates
// the request shape before parsing.
func ParseTokens(city string, now time.Time, tokens []string, source Source) Intention {
	in := Intention{
		City:   city,
		Now:    now,
		Source: source,
	}

	for _, tok := range tokens {
		key, val, ok := strings.Cut(strings.TrimSpace(tok), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "" {
			continue
		}

		switch key {
		case "mood":
			in.Mood = val
		case "until":
			if mins, err := strconv.Atoi(val); err == nil && mins > 0 {
				in.UntilMinutes = mins
			}
		case "km", "distance":
			if km, err := strconv.ParseFloat(val, 64); err == nil && km > 0 {
				in.DistanceKm = km
			}
		case "budget":
			switch BudgetTier(val) {
			case BudgetFree, BudgetCasual, BudgetTreat, BudgetSplurge:
				in.Budget = BudgetTier(val)
			}
		case "with", "companions":
			in.Companions = val
		}
	}

	return in
}

// Window returns the end of the intention's time window, or the zero time
// when no "until" constraint was given.
func (in Intention) Window() time.Time {
	if in.UntilMinutes <= 0 {
		return time.Time{}
	}
	return in.Now.Add(time.Duration(in.UntilMinutes) * time.Minute)
}
