package evaluation

import (
	"context"
	"time"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/observability"
)

// DefaultK is the ranking depth the metrics are computed at
const DefaultK = 10

// SearchService answers a search query
type SearchService interface {
	Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResponse, error)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	search SearchService
	k      int
}

// NewRunner creates a runner scoring the first k results; k <= 0 uses DefaultK
func NewRunner(search SearchService, k int) *Runner {
	if k <= 0 {
		k = DefaultK
	}
	return &Runner{search: search, k: k}
}

// Run evaluates every query. A failing query scores zero and is counted in
// FailedQueries rather than aborting the run.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	logger := observability.LoggerFromContext(ctx)
	summary := &EvalSummary{
		K:            r.k,
		TotalQueries: len(queries),
		ByCategory:   make(map[Category]*CategorySummary),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := r.search.Search(ctx, gq.SearchQuery(r.k))
		result := EvalResult{
			QueryID:  gq.ID,
			Query:    gq.Query,
			Category: gq.Category,
			Latency:  time.Since(start),
			Err:      err,
		}

		if err != nil {
			logger.Warn().Err(err).Str("query_id", gq.ID).Msg("golden query failed")
			summary.FailedQueries++
		} else {
			result.ResultCount = resp.TotalCount
			result.Retrieved = make([]string, len(resp.Results))
			for i, item := range resp.Results {
				result.Retrieved[i] = ResultKey(item.EntityType, item.Code)
			}
			result.RecallAtK = RecallAtK(gq.Expected, result.Retrieved, r.k)
			result.MRRAtK = MRRAtK(gq.Expected, result.Retrieved, r.k)
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAtK += res.RecallAtK
	s.AvgMRRAtK += res.MRRAtK
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	cs, ok := s.ByCategory[res.Category]
	if !ok {
		cs = &CategorySummary{}
		s.ByCategory[res.Category] = cs
	}
	cs.Count++
	cs.AvgRecallAtK += res.RecallAtK
	cs.AvgMRRAtK += res.MRRAtK
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecallAtK /= n
		s.AvgMRRAtK /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, cs := range s.ByCategory {
		if cs.Count > 0 {
			n := float64(cs.Count)
			cs.AvgRecallAtK /= n
			cs.AvgMRRAtK /= n
		}
	}
}
