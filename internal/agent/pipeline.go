package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/citypulse/citypulse/internal/bandit"
	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/geo"
	"github.com/citypulse/citypulse/internal/graph"
	"github.com/citypulse/citypulse/internal/intention"
	"github.com/citypulse/citypulse/internal/retrieval"
	"github.com/citypulse/citypulse/internal/scoring"
	"github.com/citypulse/citypulse/internal/slate"
	"github.com/citypulse/citypulse/internal/taste"
	"github.com/citypulse/citypulse/internal/tracing"
)

// heatHoursBack is the trailing window for social heat on the serving path.
const heatHoursBack = 48

// Pagination bounds for the flat item listing.
const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Retriever is the candidate-retrieval stage consumed by the pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filter retrieval.Filter, cacheKey string) []retrieval.Candidate
}

// node is one pipeline stage. Critical nodes abort the run on failure;
// the rest record the error and let execution continue with degraded state.
type node struct {
	name     string
	critical bool
	run      func(ctx context.Context, s *State) (*Patch, error)
}

// Pipeline is the fixed understand, retrieve, reason, plan, answer chain.
type Pipeline struct {
	retriever Retriever
	events    event.Repository
	graph     graph.Provider
	tastes    *taste.Scorer
	selector  *bandit.Selector
	weights   *scoring.Weights
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline wires the decision pipeline. graph and selector may be nil;
// the corresponding stages then run with neutral signals and the balanced
// policy.
func NewPipeline(retriever Retriever, events event.Repository, graphProvider graph.Provider, selector *bandit.Selector, weights *scoring.Weights, metrics *Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		retriever: retriever,
		events:    events,
		graph:     graphProvider,
		selector:  selector,
		weights:   weights,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// WithTaste attaches a taste affinity scorer. Requests carrying a user id
// then score candidates against the user's taste vector.
func (p *Pipeline) WithTaste(s *taste.Scorer) *Pipeline {
	p.tastes = s
	return p
}

// SetNow overrides the clock for tests.
func (p *Pipeline) SetNow(now func() time.Time) {
	p.now = now
}

// Run executes the pipeline for a request. A failure in understand or
// retrieve returns an error; any later failure degrades to empty state and
// the response is still assembled.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	state := &State{Request: req}
	nodes := []node{
		{name: "understand", critical: true, run: p.understand},
		{name: "retrieve", critical: true, run: p.retrieve},
		{name: "reason", run: p.reason},
		{name: "plan", run: p.plan},
	}

	for _, n := range nodes {
		start := p.now()
		nodeCtx, endSpan := tracing.StartSpan(ctx, "pipeline."+n.name)
		patch, err := n.run(nodeCtx, state)
		endSpan(err)
		elapsed := time.Since(start)
		p.metrics.ObserveNode(n.name, elapsed, err == nil)

		if err != nil {
			p.logger.Error("pipeline node failed",
				"node", n.name, "duration_ms", elapsed.Milliseconds(), "error", err)
			if n.critical {
				return nil, fmt.Errorf("%s: %w", n.name, err)
			}
			state.merge(&Patch{NodeError: fmt.Sprintf("%s: %v", n.name, err)})
			continue
		}

		p.logger.Debug("pipeline node done",
			"node", n.name, "duration_ms", elapsed.Milliseconds())
		state.merge(patch)
	}

	return p.answer(state), nil
}

// understand turns the raw request tokens into a structured intention and
// the retrieval query for it.
func (p *Pipeline) understand(_ context.Context, s *State) (*Patch, error) {
	req := s.Request
	if strings.TrimSpace(req.City) == "" {
		return nil, fmt.Errorf("city is required")
	}

	in := intention.ParseTokens(req.City, p.now(), req.Tokens, req.Source)
	in.SessionID = req.SessionID
	in.UserID = req.UserID
	query := intention.QueryForMood(in.Mood)

	if req.Lat != 0 || req.Lng != 0 {
		// Coarse geohash only; exact coordinates never reach the logs.
		p.logger.Debug("request located",
			"geohash", geo.Encode(req.Lat, req.Lng, geo.DefaultPrecision))
	}

	return &Patch{Intention: &in, Query: &query}, nil
}

// retrieve fans the query out to the retrieval backends and hydrates the
// surviving candidates into events. Explicit ids skip retrieval entirely.
func (p *Pipeline) retrieve(ctx context.Context, s *State) (*Patch, error) {
	var candidates []retrieval.Candidate
	if len(s.Request.ExplicitIDs) > 0 {
		for _, id := range s.Request.ExplicitIDs {
			candidates = append(candidates, retrieval.Candidate{ID: id})
		}
	} else {
		cacheKey := ""
		if s.Request.UserID == "" {
			cacheKey = s.Intention.City + ":" + s.Query
		}
		candidates = p.retriever.Retrieve(ctx, s.Query, retrieval.Filter{City: s.Intention.City}, cacheKey)
	}
	if len(candidates) == 0 {
		return &Patch{Retrieved: []retrieval.Candidate{}, Events: []*event.Event{}}, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	events, err := p.events.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return &Patch{Retrieved: candidates, Events: events}, nil
}

// reason scores every retrieved event against the intention, enriched with
// graph signals. A graph failure degrades to neutral signals rather than
// failing the node.
func (p *Pipeline) reason(ctx context.Context, s *State) (*Patch, error) {
	if len(s.Events) == 0 {
		return &Patch{Scored: []slate.Candidate{}}, nil
	}

	ids := make([]string, len(s.Events))
	for i, e := range s.Events {
		ids[i] = e.ID
	}

	signals := map[string]graph.Signals{}
	if p.graph != nil {
		collected, err := graph.Collect(ctx, p.graph, s.Request.UserID, ids, heatHoursBack)
		if err != nil {
			p.logger.Warn("graph signals unavailable", "error", err)
		} else {
			signals = collected
		}
	}

	var affinities map[string]float64
	if p.tastes != nil && s.Request.UserID != "" {
		aff, err := p.tastes.Affinities(ctx, s.Request.UserID, ids)
		if err != nil {
			p.logger.Warn("taste affinities unavailable", "error", err)
		} else {
			affinities = aff
		}
	}

	retrieved := make(map[string]retrieval.Candidate, len(s.Retrieved))
	for _, c := range s.Retrieved {
		retrieved[c.ID] = c
	}

	scored := make([]slate.Candidate, 0, len(s.Events))
	for _, e := range s.Events {
		sig, haveSignals := signals[e.ID]
		var social *scoring.SocialProof
		if haveSignals {
			social = &scoring.SocialProof{
				Views:  sig.Engagement.Views,
				Saves:  sig.Engagement.Saves,
				Shares: sig.Engagement.Shares,
			}
		} else {
			// No graph data for this event: neutral, not familiar.
			sig.Novelty = graph.NeutralNovelty
		}

		var tasteAffinity *float64
		if a, ok := affinities[e.ID]; ok {
			tasteAffinity = &a
		}

		var distance *float64
		if (s.Request.Lat != 0 || s.Request.Lng != 0) && (e.Lat != 0 || e.Lng != 0) {
			km := geo.DistanceKm(s.Request.Lat, s.Request.Lng, e.Lat, e.Lng)
			distance = &km
		}

		hit := retrieved[e.ID]
		fit := scoring.CalculateFitScore(scoring.Input{
			Event:         e,
			Intention:     s.Intention,
			TextScore:     hit.TextScore,
			SemanticScore: hit.SemanticScore,
			DistanceKm:    distance,
			TasteAffinity: tasteAffinity,
			Social:        social,
		}, p.weights)

		scored = append(scored, slate.Candidate{
			Event:      e,
			Fit:        fit,
			Signals:    sig,
			DistanceKm: distance,
		})
	}
	return &Patch{Scored: scored}, nil
}

// plan picks a composition policy via the bandit and composes the slates.
// Selector failures fall back to the balanced policy.
func (p *Pipeline) plan(ctx context.Context, s *State) (*Patch, error) {
	policy := slate.BalancedPolicy()
	if p.selector != nil {
		name, err := p.selector.ChoosePolicyForUser(ctx, s.Request.UserID)
		if err != nil {
			p.logger.Warn("policy selection failed, using balanced", "error", err)
		} else if chosen, ok := slate.PolicyByName(name); ok {
			policy = chosen
		}
	}
	if s.Request.Diversify != nil {
		policy.Diversify = *s.Request.Diversify
	}

	slates := slate.Compose(s.Scored, policy)
	name := policy.Name
	return &Patch{Policy: &name, Slates: &slates}, nil
}

// answer assembles the paginated flat listing plus the slates.
func (p *Pipeline) answer(s *State) *Response {
	limit := s.Request.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := s.Request.Page
	if page < 1 {
		page = 1
	}

	ranked := slate.Ranked(s.Scored)
	start := (page - 1) * limit
	if start > len(ranked) {
		start = len(ranked)
	}
	end := start + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	slates := s.Slates
	return &Response{
		Items:   ranked[start:end],
		HasMore: end < len(ranked),
		Slates:  &slates,
		Policy:  s.Policy,
	}
}
