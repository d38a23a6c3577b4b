// Package ads implements the sponsored-content decision path: targeting
// match, budget and pacing admission, frequency capping, quality scoring, a
// generalized second-price auction, and post-click attribution.
package ads

import (
	"errors"
	"fmt"
	"time"

	"github.com/citypulse/citypulse/internal/validate"
)

// Pacing controls how a campaign's daily budget is spent over the day.
type Pacing string

const (
	// PacingASAP spends the daily budget as fast as impressions arrive.
	PacingASAP Pacing = "ASAP"
	// PacingEven spreads the daily budget evenly across the day.
	PacingEven Pacing = "EVEN"
)

// CreativeFormat distinguishes externally supplied creatives from native
// house-event creatives rendered in the feed's own style.
type CreativeFormat string

const (
	FormatBanner CreativeFormat = "banner"
	FormatNative CreativeFormat = "native"
)

// EventType classifies a tracked ad interaction.
type EventType string

const (
	EventClick      EventType = "CLICK"
	EventViewable   EventType = "VIEWABLE"
	EventConversion EventType = "CONVERSION"
)

// Attribution windows. A conversion attributes to the most recent click
// within the click window if one exists, else to the impression within the
// view window, else not at all.
const (
	ClickAttributionWindow = 7 * 24 * time.Hour
	ViewAttributionWindow  = 24 * time.Hour
)

// DefaultFrequencyCap is the per-session impression ceiling for a campaign
// within a trailing 24 hours.
const DefaultFrequencyCap = 3

// MinSponsorshipFit is the minimum fit score an event must clear before a
// sponsored creative may be attached to it.
const MinSponsorshipFit = 0.65

// DefaultSoloSettlementFraction is the share of the raw bid charged when an
// auction has a single candidate and there is no second price to settle at.
const DefaultSoloSettlementFraction = 0.8

// MaxQualityScore caps the quality multiplier applied to bids.
const MaxQualityScore = 2.0

var (
	// ErrCampaignNotFound is returned when a campaign is not found.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrImpressionNotFound is returned when an impression is not found.
	ErrImpressionNotFound = errors.New("impression not found")
	// ErrBudgetExceeded is returned when a spend charge would push a
	// campaign past its total budget.
	ErrBudgetExceeded = errors.New("campaign budget exceeded")
	// ErrDuplicateAdEvent is returned when the same interaction is
	// reported twice for one impression.
	ErrDuplicateAdEvent = errors.New("ad event already recorded")
)

// Targeting is a campaign's audience rule. Cities is a hard gate; the other
// fields are optional weighted sub-checks that shape the match score.
type Targeting struct {
	Cities        []string
	Neighborhoods []string
	Categories    []string
	// HourStart/HourEnd bound the local hour of day, inclusive-exclusive.
	// Both zero means no time-of-day restriction.
	HourStart int
	HourEnd   int
	// DaysOfWeek holds time.Weekday values; empty means every day.
	DaysOfWeek []time.Weekday
	// PriceMin/PriceMax bound the user's price context. Both zero means
	// no price restriction.
	PriceMin float64
	PriceMax float64
	Keywords []string
}

// Campaign is a sponsor's buy: budget, bid, pacing, and targeting rule.
type Campaign struct {
	ID           string
	Name         string
	SponsorID    string
	Status       string
	BidAmount    float64
	TotalBudget  float64
	DailyBudget  float64
	Spent        float64
	SpentToday   float64
	Pacing       Pacing
	QualityBase  float64
	FrequencyCap int
	Targeting    Targeting
	Impressions  int64
	Clicks       int64
	StartsAt     time.Time
	EndsAt       time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StatusActive is the only campaign status eligible for auctions.
const StatusActive = "active"

// Active reports whether the campaign can enter an auction at t.
func (c *Campaign) Active(t time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	if !c.StartsAt.IsZero() && t.Before(c.StartsAt) {
		return false
	}
	if !c.EndsAt.IsZero() && !t.Before(c.EndsAt) {
		return false
	}
	return true
}

// EffectiveFrequencyCap returns the campaign cap or the default when unset.
func (c *Campaign) EffectiveFrequencyCap() int {
	if c.FrequencyCap > 0 {
		return c.FrequencyCap
	}
	return DefaultFrequencyCap
}

// HistoricalCTR is the campaign's lifetime click-through rate.
func (c *Campaign) HistoricalCTR() float64 {
	if c.Impressions == 0 {
		return 0
	}
	return float64(c.Clicks) / float64(c.Impressions)
}

// Creative is a renderable ad unit belonging to a campaign.
type Creative struct {
	ID         string
	CampaignID string
	Headline   string
	Body       string
	ImageURL   string
	TargetURL  string
	Format     CreativeFormat
	// EventID links a native creative to the house event it promotes.
	EventID   string
	CreatedAt time.Time
}

// Validate checks that a creative is renderable: a headline within limits
// and an HTTPS click-through destination that does not point at private
// address space. Native creatives may omit the target URL when they link a
// house event instead.
func (cr *Creative) Validate() error {
	if _, err := validate.CampaignHeadline(cr.Headline); err != nil {
		return fmt.Errorf("headline: %w", err)
	}
	if _, err := validate.CreativeBody(cr.Body); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	if cr.TargetURL == "" {
		if cr.Format != FormatNative || cr.EventID == "" {
			return errors.New("missing target URL")
		}
	} else if _, err := validate.TargetURL(cr.TargetURL); err != nil {
		return fmt.Errorf("target URL: %w", err)
	}
	if cr.ImageURL != "" {
		if _, err := validate.MediaURL(cr.ImageURL); err != nil {
			return fmt.Errorf("image URL: %w", err)
		}
	}
	return nil
}

// RequestContext is the serving-side context an auction runs against.
type RequestContext struct {
	SessionID    string
	UserID       string
	City         string
	Neighborhood string
	Category     string
	Query        string
	// PriceContext is the user's budget ceiling, 0 when unknown.
	PriceContext float64
	Now          time.Time
}

// AdCandidate is a campaign that survived admission, transient per auction.
type AdCandidate struct {
	Campaign       *Campaign
	Creative       *Creative
	TargetingScore float64
	QualityScore   float64
	Bid            float64
}

// EffectiveBid ranks candidates in the auction.
func (c AdCandidate) EffectiveBid() float64 {
	return c.Bid * c.QualityScore
}

// AuctionResult is the auction outcome. Winner is nil when no candidate
// cleared admission.
type AuctionResult struct {
	Winner          *AdCandidate
	SettlementPrice float64
}

// Impression records a won auction for attribution and billing.
type Impression struct {
	ID              string
	CampaignID      string
	CreativeID      string
	SessionID       string
	UserID          string
	City            string
	SettlementPrice float64
	ServedAt        time.Time
}

// AdEvent is a tracked interaction against an impression.
type AdEvent struct {
	ID             string
	ImpressionID   string
	CampaignID     string
	Type           EventType
	ConversionType string
	EventID        string
	Value          float64
	OccurredAt     time.Time
}
