package ads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists campaigns, creatives, impressions, and tracked events.
type Store interface {
	// ListActiveCampaigns returns active campaigns eligible in a city.
	ListActiveCampaigns(ctx context.Context, city string, now time.Time) ([]*Campaign, error)
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	// GetCreative returns a creative for the campaign, preferring native
	// formats when several exist.
	GetCreative(ctx context.Context, campaignID string) (*Creative, error)
	// ChargeSpend atomically adds cost to the campaign's spend counters
	// and increments impressions, failing with ErrBudgetExceeded when the
	// charge would pass the total budget.
	ChargeSpend(ctx context.Context, campaignID string, cost float64) error
	InsertImpression(ctx context.Context, imp *Impression) error
	// DeleteImpression rolls an impression back when its settlement
	// charge fails.
	DeleteImpression(ctx context.Context, id string) error
	GetImpression(ctx context.Context, id string) (*Impression, error)
	// InsertAdEvent records an interaction, deduplicating on
	// (impression, event type, event id).
	InsertAdEvent(ctx context.Context, ev *AdEvent) error
	// LastClick returns the most recent click time for an impression, or
	// nil when it has never been clicked.
	LastClick(ctx context.Context, impressionID string) (*time.Time, error)
	// IncrementCounter bumps the campaign's click, viewable, or
	// conversion counter.
	IncrementCounter(ctx context.Context, campaignID string, kind EventType) error
}

// MemoryStore implements Store with in-memory storage.
type MemoryStore struct {
	mu          sync.RWMutex
	campaigns   map[string]*Campaign
	creatives   map[string][]*Creative
	impressions map[string]*Impression
	events      map[string]*AdEvent
	eventKeys   map[string]struct{}
	viewables   map[string]int64
	conversions map[string]int64
}

// NewMemoryStore creates a new in-memory ads store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:   make(map[string]*Campaign),
		creatives:   make(map[string][]*Creative),
		impressions: make(map[string]*Impression),
		events:      make(map[string]*AdEvent),
		eventKeys:   make(map[string]struct{}),
		viewables:   make(map[string]int64),
		conversions: make(map[string]int64),
	}
}

// PutCampaign inserts or replaces a campaign.
func (s *MemoryStore) PutCampaign(c *Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	copied := *c
	s.campaigns[c.ID] = &copied
}

// PutCreative inserts a creative for its campaign.
func (s *MemoryStore) PutCreative(cr *Creative) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cr.ID == "" {
		cr.ID = uuid.New().String()
	}
	copied := *cr
	s.creatives[cr.CampaignID] = append(s.creatives[cr.CampaignID], &copied)
}

// ListActiveCampaigns returns active campaigns whose targeting allows city.
func (s *MemoryStore) ListActiveCampaigns(_ context.Context, city string, now time.Time) ([]*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Campaign
	for _, c := range s.campaigns {
		if !c.Active(now) {
			continue
		}
		if len(c.Targeting.Cities) > 0 && !containsFold(c.Targeting.Cities, city) {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

// GetCampaign retrieves a campaign by ID.
func (s *MemoryStore) GetCampaign(_ context.Context, id string) (*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	copied := *c
	return &copied, nil
}

// GetCreative returns the campaign's creative, preferring native formats.
func (s *MemoryStore) GetCreative(_ context.Context, campaignID string) (*Creative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.creatives[campaignID]
	if len(list) == 0 {
		return nil, ErrCampaignNotFound
	}
	for _, cr := range list {
		if cr.Format == FormatNative {
			copied := *cr
			return &copied, nil
		}
	}
	copied := *list[0]
	return &copied, nil
}

// ChargeSpend adds the settlement cost to the campaign's spend counters.
func (s *MemoryStore) ChargeSpend(_ context.Context, campaignID string, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return ErrCampaignNotFound
	}
	if c.TotalBudget > 0 && c.Spent+cost > c.TotalBudget {
		return ErrBudgetExceeded
	}
	c.Spent += cost
	c.SpentToday += cost
	c.Impressions++
	c.UpdatedAt = time.Now()
	return nil
}

// InsertImpression stores an impression record.
func (s *MemoryStore) InsertImpression(_ context.Context, imp *Impression) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}
	copied := *imp
	s.impressions[imp.ID] = &copied
	return nil
}

// DeleteImpression removes an impression record.
func (s *MemoryStore) DeleteImpression(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.impressions, id)
	return nil
}

// GetImpression retrieves an impression by ID.
func (s *MemoryStore) GetImpression(_ context.Context, id string) (*Impression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	imp, ok := s.impressions[id]
	if !ok {
		return nil, ErrImpressionNotFound
	}
	copied := *imp
	return &copied, nil
}

func adEventKey(ev *AdEvent) string {
	return ev.ImpressionID + ":" + string(ev.Type) + ":" + ev.EventID
}

// InsertAdEvent stores an interaction, rejecting duplicates.
func (s *MemoryStore) InsertAdEvent(_ context.Context, ev *AdEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := adEventKey(ev)
	if _, exists := s.eventKeys[key]; exists {
		return ErrDuplicateAdEvent
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	copied := *ev
	s.events[ev.ID] = &copied
	s.eventKeys[key] = struct{}{}
	return nil
}

// LastClick returns the most recent click time for an impression.
func (s *MemoryStore) LastClick(_ context.Context, impressionID string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	for _, ev := range s.events {
		if ev.ImpressionID != impressionID || ev.Type != EventClick {
			continue
		}
		if last == nil || ev.OccurredAt.After(*last) {
			t := ev.OccurredAt
			last = &t
		}
	}
	return last, nil
}

// IncrementCounter bumps the campaign counter for an event type.
func (s *MemoryStore) IncrementCounter(_ context.Context, campaignID string, kind EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return ErrCampaignNotFound
	}
	switch kind {
	case EventClick:
		c.Clicks++
	case EventViewable:
		s.viewables[campaignID]++
	case EventConversion:
		s.conversions[campaignID]++
	}
	return nil
}
