package ads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ServeResult is the outcome of one serve request. Ad is nil when no
// campaign cleared admission, which is a valid empty response. The
// targeting and quality scores are the winner's, carried so the serving
// layer can expose them alongside the settlement price.
type ServeResult struct {
	Ad              *AdCandidate
	ImpressionID    string
	TrackToken      string
	TargetingScore  float64
	QualityScore    float64
	SettlementPrice float64
}

// TrackResult reports how a tracked event landed.
type TrackResult struct {
	Recorded   bool
	Attributed bool
	// AttributedTo names the touchpoint a conversion credited, empty for
	// non-conversion events.
	AttributedTo EventType
}

// EngineConfig tunes the decision path.
type EngineConfig struct {
	// SoloSettlementFraction is the share of the raw bid charged in a
	// single-candidate auction. Zero means DefaultSoloSettlementFraction.
	SoloSettlementFraction float64
	// DefaultFrequencyCap applies to campaigns with no cap of their own.
	// Zero means the package default.
	DefaultFrequencyCap int
}

// Engine runs the full sponsored-content decision: admission, auction,
// settlement, and tracked-event attribution.
type Engine struct {
	store   Store
	capper  FrequencyCapper
	signer  *TokenSigner
	cfg     EngineConfig
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine wires an ad decision engine.
func NewEngine(store Store, capper FrequencyCapper, signer *TokenSigner, cfg EngineConfig, metrics *Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		capper:  capper,
		signer:  signer,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SetNow overrides the clock for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// Serve runs admission and the auction for a request context, settles the
// winner, and issues a tracking token. An empty result is not an error.
func (e *Engine) Serve(ctx context.Context, req RequestContext) (*ServeResult, error) {
	return e.serve(ctx, req, nil)
}

// ServeNative runs the auction restricted to native creatives promoting one
// of the given events. The recommend surface uses this to attach sponsorship
// to organic items that already cleared the fit floor, so a campaign is only
// charged when its event can actually carry the sponsorship.
func (e *Engine) ServeNative(ctx context.Context, req RequestContext, eligibleEvents map[string]bool) (*ServeResult, error) {
	if len(eligibleEvents) == 0 {
		return &ServeResult{}, nil
	}
	return e.serve(ctx, req, func(c AdCandidate) bool {
		return c.Creative.Format == FormatNative && eligibleEvents[c.Creative.EventID]
	})
}

func (e *Engine) serve(ctx context.Context, req RequestContext, keep func(AdCandidate) bool) (*ServeResult, error) {
	now := e.now()
	if req.Now.IsZero() {
		req.Now = now
	}

	campaigns, err := e.store.ListActiveCampaigns(ctx, req.City, req.Now)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	candidates := e.admit(ctx, campaigns, req)
	if keep != nil {
		filtered := make([]AdCandidate, 0, len(candidates))
		for _, c := range candidates {
			if keep(c) {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}
	result := RunAuction(candidates, e.cfg.SoloSettlementFraction)
	e.metrics.ObserveAuction(len(candidates), result)
	if result.Winner == nil {
		return &ServeResult{}, nil
	}

	winner := result.Winner
	imp := &Impression{
		CampaignID:      winner.Campaign.ID,
		CreativeID:      winner.Creative.ID,
		SessionID:       req.SessionID,
		UserID:          req.UserID,
		City:            req.City,
		SettlementPrice: result.SettlementPrice,
		ServedAt:        req.Now,
	}
	if err := e.store.InsertImpression(ctx, imp); err != nil {
		return nil, fmt.Errorf("insert impression: %w", err)
	}

	// Charge after the impression exists; roll the impression back if the
	// charge cannot land, so spend and impressions never diverge.
	if err := e.store.ChargeSpend(ctx, winner.Campaign.ID, result.SettlementPrice); err != nil {
		if derr := e.store.DeleteImpression(ctx, imp.ID); derr != nil {
			e.logger.Warn("impression rollback failed",
				"impression_id", imp.ID, "error", derr)
		}
		if errors.Is(err, ErrBudgetExceeded) {
			// Lost the race for the campaign's last budget. The
			// request still gets a valid empty response.
			e.logger.Info("campaign budget exhausted at settlement",
				"campaign_id", winner.Campaign.ID)
			return &ServeResult{}, nil
		}
		return nil, fmt.Errorf("charge spend: %w", err)
	}
	if e.capper != nil && req.SessionID != "" {
		if err := e.capper.Record(ctx, winner.Campaign.ID, req.SessionID); err != nil {
			e.logger.Warn("record frequency failed", "error", err)
		}
	}

	var token string
	if e.signer != nil {
		token, err = e.signer.Sign(imp.ID, winner.Campaign.ID, req.SessionID, req.Now)
		if err != nil {
			return nil, fmt.Errorf("sign track token: %w", err)
		}
	}

	e.logger.Info("ad auction won",
		"campaign_id", winner.Campaign.ID,
		"effective_bid", winner.EffectiveBid(),
		"settlement_price", result.SettlementPrice,
		"candidates", len(candidates))

	return &ServeResult{
		Ad:              winner,
		ImpressionID:    imp.ID,
		TrackToken:      token,
		TargetingScore:  winner.TargetingScore,
		QualityScore:    winner.QualityScore,
		SettlementPrice: result.SettlementPrice,
	}, nil
}

// admit filters campaigns through the targeting, budget, and frequency
// gates and scores the survivors.
func (e *Engine) admit(ctx context.Context, campaigns []*Campaign, req RequestContext) []AdCandidate {
	var out []AdCandidate
	for _, c := range campaigns {
		if !c.Active(req.Now) {
			e.metrics.ObserveRejection(RejectInactive)
			continue
		}
		matched, targetingScore := MatchTargeting(c.Targeting, req)
		if !matched {
			e.metrics.ObserveRejection(RejectTargeting)
			continue
		}
		if !CheckBudgetAndPacing(c, req.Now) {
			e.metrics.ObserveRejection(RejectBudget)
			continue
		}
		if !CheckFrequencyCap(ctx, e.capper, c, req.SessionID, e.cfg.DefaultFrequencyCap) {
			e.metrics.ObserveRejection(RejectFrequency)
			continue
		}
		creative, err := e.store.GetCreative(ctx, c.ID)
		if err != nil {
			// A campaign with no creative has nothing to render.
			continue
		}
		if err := creative.Validate(); err != nil {
			e.metrics.ObserveRejection(RejectCreative)
			continue
		}
		out = append(out, AdCandidate{
			Campaign:       c,
			Creative:       creative,
			TargetingScore: targetingScore,
			QualityScore:   CalculateQualityScore(c, creative),
			Bid:            c.BidAmount,
		})
	}
	return out
}

// Track records a reported interaction against its impression. Conversions
// are attributed to the most recent click within the click window, falling
// back to the impression's view window; an unattributable conversion is
// acknowledged but not recorded.
func (e *Engine) Track(ctx context.Context, claims *TrackClaims, kind EventType, conversionType, eventID string, value float64) (*TrackResult, error) {
	now := e.now()

	imp, err := e.store.GetImpression(ctx, claims.ImpressionID)
	if err != nil {
		return nil, fmt.Errorf("load impression: %w", err)
	}
	if imp.CampaignID != claims.CampaignID {
		return nil, ErrInvalidTrackToken
	}

	var attributedTo EventType
	attributed := true
	if kind == EventConversion {
		lastClick, err := e.store.LastClick(ctx, imp.ID)
		if err != nil {
			return nil, fmt.Errorf("load last click: %w", err)
		}
		attributedTo, attributed = AttributeConversion(imp.ServedAt, lastClick, now)
		if !attributed {
			e.metrics.ObserveTrackedEvent(kind, false)
			return &TrackResult{Recorded: false, Attributed: false}, nil
		}
	}

	ev := &AdEvent{
		ImpressionID:   imp.ID,
		CampaignID:     imp.CampaignID,
		Type:           kind,
		ConversionType: conversionType,
		EventID:        eventID,
		Value:          value,
		OccurredAt:     now,
	}
	if err := e.store.InsertAdEvent(ctx, ev); err != nil {
		if errors.Is(err, ErrDuplicateAdEvent) {
			return &TrackResult{Recorded: false, Attributed: attributed, AttributedTo: attributedTo}, nil
		}
		return nil, fmt.Errorf("insert ad event: %w", err)
	}
	if err := e.store.IncrementCounter(ctx, imp.CampaignID, kind); err != nil {
		e.logger.Warn("increment counter failed",
			"campaign_id", imp.CampaignID, "event_type", kind, "error", err)
	}

	e.metrics.ObserveTrackedEvent(kind, attributed)
	return &TrackResult{Recorded: true, Attributed: attributed, AttributedTo: attributedTo}, nil
}
