package graph

import (
	"context"
	"sync"
	"time"

	"github.com/citypulse/citypulse/internal/event"
)

// ActivityKind is the type of a recorded engagement.
type ActivityKind string

const (
	ActivityView  ActivityKind = "view"
	ActivitySave  ActivityKind = "save"
	ActivityShare ActivityKind = "share"
)

// activity is one recorded engagement with an event.
type activity struct {
	kind ActivityKind
	at   time.Time
}

// familiarCategoryCount is the number of past interactions with a category
// after which events in it stop reading as novel.
const familiarCategoryCount = 5

// venueRepeatNovelty is the novelty score for an event at a venue the user
// has already been to: almost entirely familiar.
const venueRepeatNovelty = 0.1

// InMemoryProvider is an in-memory Provider over recorded interactions.
// Used for testing and development.
type InMemoryProvider struct {
	mu sync.RWMutex

	events         map[string]*event.Event   // eventID -> event
	categoryCounts map[string]map[event.Category]int // userID -> category -> interactions
	venuesSeen     map[string]map[string]bool // userID -> venueID -> seen
	friends        map[string]map[string]bool // userID -> friend userIDs
	attendees      map[string]map[string]bool // eventID -> engaged userIDs
	activities     map[string][]activity      // eventID -> engagements

	now func() time.Time
}

// NewInMemoryProvider creates a new in-memory graph provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		events:         make(map[string]*event.Event),
		categoryCounts: make(map[string]map[event.Category]int),
		venuesSeen:     make(map[string]map[string]bool),
		friends:        make(map[string]map[string]bool),
		attendees:      make(map[string]map[string]bool),
		activities:     make(map[string][]activity),
		now:            time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (p *InMemoryProvider) SetNow(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// AddEvent registers an event so novelty lookups can see its category/venue.
func (p *InMemoryProvider) AddEvent(e *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *e
	p.events[e.ID] = &copied
}

// AddFriendship records a mutual friendship edge.
func (p *InMemoryProvider) AddFriendship(a, b string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.friends[a] == nil {
		p.friends[a] = make(map[string]bool)
	}
	if p.friends[b] == nil {
		p.friends[b] = make(map[string]bool)
	}
	p.friends[a][b] = true
	p.friends[b][a] = true
}

// RecordInteraction records one user engagement with an event. It feeds all
// three signals: category/venue familiarity, attendee sets, and heat.
func (p *InMemoryProvider) RecordInteraction(userID, eventID string, kind ActivityKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if userID != "" {
		if e, ok := p.events[eventID]; ok {
			if p.categoryCounts[userID] == nil {
				p.categoryCounts[userID] = make(map[event.Category]int)
			}
			p.categoryCounts[userID][e.Category]++
			if e.VenueID != "" {
				if p.venuesSeen[userID] == nil {
					p.venuesSeen[userID] = make(map[string]bool)
				}
				p.venuesSeen[userID][e.VenueID] = true
			}
		}
		if p.attendees[eventID] == nil {
			p.attendees[eventID] = make(map[string]bool)
		}
		p.attendees[eventID][userID] = true
	}

	p.activities[eventID] = append(p.activities[eventID], activity{kind: kind, at: p.now()})
}

// Novelty scores how unlike the user's history each event is.
func (p *InMemoryProvider) Novelty(_ context.Context, userID string, ids []string) (map[string]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if userID == "" {
			out[id] = NeutralNovelty
			continue
		}
		e, ok := p.events[id]
		if !ok {
			out[id] = NeutralNovelty
			continue
		}
		if e.VenueID != "" && p.venuesSeen[userID][e.VenueID] {
			out[id] = venueRepeatNovelty
			continue
		}
		seen := p.categoryCounts[userID][e.Category]
		familiarity := float64(seen) / familiarCategoryCount
		if familiarity > 1 {
			familiarity = 1
		}
		out[id] = 1 - familiarity
	}
	return out, nil
}

// FriendOverlap counts the user's friends engaged with each event.
func (p *InMemoryProvider) FriendOverlap(_ context.Context, userID string, ids []string) (map[string]int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]int, len(ids))
	for _, id := range ids {
		if userID == "" {
			out[id] = 0
			continue
		}
		count := 0
		for friend := range p.friends[userID] {
			if p.attendees[id][friend] {
				count++
			}
		}
		out[id] = count
	}
	return out, nil
}

// SocialHeat aggregates weighted engagement in the trailing window,
// normalized by the batch maximum.
func (p *InMemoryProvider) SocialHeat(_ context.Context, ids []string, hoursBack int) (map[string]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := p.now().Add(-time.Duration(hoursBack) * time.Hour)
	raw := make(map[string]float64, len(ids))
	for _, id := range ids {
		var total float64
		for _, a := range p.activities[id] {
			if a.at.Before(cutoff) {
				continue
			}
			switch a.kind {
			case ActivitySave:
				total += SaveWeight
			case ActivityShare:
				total += ShareWeight
			default:
				total += ViewWeight
			}
		}
		raw[id] = total
	}
	return normalizeHeat(raw), nil
}

// Engagement returns raw per-kind engagement counts in the trailing window.
func (p *InMemoryProvider) Engagement(_ context.Context, ids []string, hoursBack int) (map[string]Engagement, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := p.now().Add(-time.Duration(hoursBack) * time.Hour)
	out := make(map[string]Engagement, len(ids))
	for _, id := range ids {
		var eng Engagement
		for _, a := range p.activities[id] {
			if a.at.Before(cutoff) {
				continue
			}
			switch a.kind {
			case ActivitySave:
				eng.Saves++
			case ActivityShare:
				eng.Shares++
			default:
				eng.Views++
			}
		}
		out[id] = eng
	}
	return out, nil
}
