// Package agent runs the per-request decision pipeline: understand the
// intention, retrieve candidates, reason over signals and fit, plan the
// slates, and assemble the answer. Nodes return partial state patches that
// the pipeline merges; the understand and retrieve nodes are load-bearing
// and abort the pipeline on failure, while later nodes degrade to empty
// state so the caller always gets a renderable response.
package agent

import (
	"github.com/citypulse/citypulse/internal/event"
	"github.com/citypulse/citypulse/internal/intention"
	"github.com/citypulse/citypulse/internal/retrieval"
	"github.com/citypulse/citypulse/internal/slate"
)

// Request is the serving-layer contract into the pipeline.
type Request struct {
	UserID    string
	SessionID string
	City      string
	// Tokens carry the raw intention key=value pairs.
	Tokens []string
	Source intention.Source
	// Lat/Lng is the user's location, both zero when unknown.
	Lat float64
	Lng float64
	// ExplicitIDs bypass retrieval and score exactly these events.
	ExplicitIDs []string
	// Diversify overrides the policy's diversification flag when set.
	Diversify *bool
	Page      int
	Limit     int
}

// Response is what the pipeline hands back to the serving layer.
type Response struct {
	Items   []slate.Item `json:"items"`
	HasMore bool         `json:"has_more"`
	Slates  *slate.Slates `json:"slates,omitempty"`
	Policy  string        `json:"policy"`
}

// State is the accumulated pipeline state. Nodes read it and propose
// patches; only the pipeline's merge mutates it.
type State struct {
	Request   Request
	Intention intention.Intention
	Query     string
	Retrieved []retrieval.Candidate
	Events    []*event.Event
	Scored    []slate.Candidate
	Policy    string
	Slates    slate.Slates
	// NodeErrors collects non-fatal node failures for observability.
	NodeErrors []string
}

// Patch is a node's partial contribution to the state. Nil fields leave the
// existing state untouched.
type Patch struct {
	Intention *intention.Intention
	Query     *string
	Retrieved []retrieval.Candidate
	Events    []*event.Event
	Scored    []slate.Candidate
	Policy    *string
	Slates    *slate.Slates
	NodeError string
}

func (s *State) merge(p *Patch) {
	if p == nil {
		return
	}
	if p.Intention != nil {
		s.Intention = *p.Intention
	}
	if p.Query != nil {
		s.Query = *p.Query
	}
	if p.Retrieved != nil {
		s.Retrieved = p.Retrieved
	}
	if p.Events != nil {
		s.Events = p.Events
	}
	if p.Scored != nil {
		s.Scored = p.Scored
	}
	if p.Policy != nil {
		s.Policy = *p.Policy
	}
	if p.Slates != nil {
		s.Slates = *p.Slates
	}
	if p.NodeError != "" {
		s.NodeErrors = append(s.NodeErrors, p.NodeError)
	}
}
