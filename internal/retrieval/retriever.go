package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTopK bounds the unioned candidate set handed to scoring.
	DefaultTopK = 50
	// DefaultRerankTop bounds how many candidates survive a rerank pass.
	DefaultRerankTop = 20
	// DefaultTimeout caps the whole fanout, shared across both backends.
	DefaultTimeout = 800 * time.Millisecond
)

// Options tune a Retriever. Zero values fall back to the defaults above.
type Options struct {
	TopK      int
	RerankTop int
	Timeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RerankTop <= 0 {
		o.RerankTop = DefaultRerankTop
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Retriever fans a query out to the vector and keyword backends
// concurrently and unions their results. Either backend may be nil, and
// either may fail, without failing the request. Cache and reranker are
// optional.
type Retriever struct {
	vector   Backend
	keyword  Backend
	cache    Cache
	reranker Reranker
	opts     Options
	logger   *slog.Logger
}

// NewRetriever wires a retriever from its stages.
func NewRetriever(vector, keyword Backend, opts Options, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		vector:  vector,
		keyword: keyword,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// WithCache attaches a retrieval cache.
func (r *Retriever) WithCache(c Cache) *Retriever {
	r.cache = c
	return r
}

// WithReranker attaches a reranker stage.
func (r *Retriever) WithReranker(rr Reranker) *Retriever {
	r.reranker = rr
	return r
}

// Retrieve runs the fanout for a query. cacheKey may be empty to bypass the
// cache, useful when the query carries per-user context that should not be
// shared. The result is sorted best first and bounded by TopK, or RerankTop
// when a reranker ran.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter Filter, cacheKey string) []Candidate {
	if r.cache != nil && cacheKey != "" {
		if cached, ok := r.cache.Get(ctx, cacheKey); ok {
			return cached
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	var vectorHits, keywordHits []Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectorHits = r.search(gctx, r.vector, "vector", query, filter)
		return nil
	})
	g.Go(func() error {
		keywordHits = r.search(gctx, r.keyword, "keyword", query, filter)
		return nil
	})
	_ = g.Wait()

	merged := mergeByID(vectorHits, keywordHits)
	sortByScore(merged)
	if len(merged) > r.opts.TopK {
		merged = merged[:r.opts.TopK]
	}

	if r.reranker != nil && len(merged) > 0 {
		reranked, err := r.reranker.Rerank(ctx, query, merged)
		if err != nil {
			r.logger.Warn("rerank failed, keeping fanout order", "error", err)
		} else {
			merged = reranked
			if len(merged) > r.opts.RerankTop {
				merged = merged[:r.opts.RerankTop]
			}
		}
	}

	if r.cache != nil && cacheKey != "" && len(merged) > 0 {
		r.cache.Set(ctx, cacheKey, merged)
	}
	return merged
}

func (r *Retriever) search(ctx context.Context, backend Backend, name, query string, filter Filter) []Candidate {
	if backend == nil {
		return nil
	}
	hits, err := backend.Search(ctx, query, filter, r.opts.TopK)
	if err != nil {
		r.logger.Warn("retrieval backend failed", "backend", name, "error", err)
		return nil
	}
	return hits
}

// mergeByID unions the two hit lists. When an id appears in both, the vector
// hit wins and absorbs the keyword text score, tagged as coming from both.
func mergeByID(vectorHits, keywordHits []Candidate) []Candidate {
	merged := make([]Candidate, 0, len(vectorHits)+len(keywordHits))
	index := make(map[string]int, len(vectorHits))
	for _, c := range vectorHits {
		index[c.ID] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range keywordHits {
		if i, ok := index[c.ID]; ok {
			merged[i].TextScore = c.TextScore
			merged[i].Source = SourceBoth
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// sortByScore orders candidates best first, breaking ties by id so the
// ordering is stable across runs.
func sortByScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].Score(), candidates[j].Score()
		if si != sj {
			return si > sj
		}
		return candidates[i].ID < candidates[j].ID
	})
}
