package services

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/domain/repositories"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/observability"
	apperrors "github.com/to-ny/medsearch-sub001/pkg/errors"
	"github.com/to-ny/medsearch-sub001/pkg/utils"
)

// SearchEngineConfig holds the engine tunables
type SearchEngineConfig struct {
	PerKindCap     int
	DefaultLimit   int
	MinQueryLength int

	// PartialResults turns a failing searcher into a reported gap instead
	// of failing the whole search.
	PartialResults bool

	// Now defaults to time.Now; expiry checks use it.
	Now func() time.Time
}

// MaxPerKindCap bounds the candidates fetched from one collection
const MaxPerKindCap = 10000

// DefaultSearchEngineConfig returns the production defaults
func DefaultSearchEngineConfig() SearchEngineConfig {
	return SearchEngineConfig{
		PerKindCap:     50,
		DefaultLimit:   20,
		MinQueryLength: 3,
	}
}

// SearchEngine runs federated searches across every entity collection.
// It holds no per-call state.
type SearchEngine struct {
	searchers []*EntitySearcher
	ranker    *SearchRankingService
	cfg       SearchEngineConfig
}

var (
	lookupDurationOnce sync.Once
	lookupDuration     metric.Float64Histogram
)

func initLookupDuration() {
	meter := otel.Meter("medsearch-search")
	h, err := meter.Float64Histogram(
		"search.lookup.duration",
		metric.WithDescription("Per-kind index lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	lookupDuration = h
}

// NewSearchEngine creates a new search engine over index
func NewSearchEngine(index repositories.EntityIndexRepository, cfg SearchEngineConfig) *SearchEngine {
	defaults := DefaultSearchEngineConfig()
	if cfg.PerKindCap <= 0 || cfg.PerKindCap > MaxPerKindCap {
		cfg.PerKindCap = defaults.PerKindCap
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = defaults.MinQueryLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &SearchEngine{
		searchers: NewEntitySearchers(index),
		ranker:    NewSearchRankingService(),
		cfg:       cfg,
	}
}

// searchOutcome is what one searcher contributed to a search
type searchOutcome struct {
	kind      entities.EntityKind
	rows      []*entities.IndexedEntityRow
	truncated bool
	failed    bool
}

// Search classifies q, fans it out to every applicable searcher and returns
// the ranked, faceted and paginated result.
func (e *SearchEngine) Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResponse, error) {
	ctx, span := observability.StartSpan(ctx, "search.federated")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)

	if err := e.normalize(&q); err != nil {
		return nil, err
	}

	shape := ClassifyQuery(q.Text)
	span.SetAttributes(
		attribute.String("search.shape", shape.String()),
		attribute.String("search.lang", q.Lang),
		attribute.Bool("search.filtered", q.HasFilters()),
	)

	outcomes, err := e.dispatch(ctx, &q, shape)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	resp := &entities.SearchResponse{
		Query:  q.Text,
		Facets: make(map[entities.EntityKind]int),
	}

	var candidates []*entities.IndexedEntityRow
	for _, o := range outcomes {
		switch {
		case o.failed:
			resp.Partial = true
			resp.FailedKinds = append(resp.FailedKinds, o.kind)
		case o.truncated:
			resp.Incomplete = true
			resp.TruncatedKinds = append(resp.TruncatedKinds, o.kind)
		}
		candidates = append(candidates, o.rows...)
	}

	candidates = Deduplicate(candidates)

	folded := utils.FoldText(q.Text)
	scored := make([]entities.ScoredResult, 0, len(candidates))
	for _, row := range candidates {
		scored = append(scored, ScoreCandidate(row, folded, q.Lang))
	}
	e.ranker.Rank(scored, q.Lang)

	for _, r := range scored {
		resp.Facets[r.Row.Kind]++
	}
	resp.TotalCount = len(scored)

	page, hasMore := paginate(scored, q.Limit, q.Offset)
	resp.Results = make([]entities.SearchResultItem, 0, len(page))
	for _, r := range page {
		resp.Results = append(resp.Results, toResultItem(r, q.Lang))
	}
	resp.Pagination = entities.Pagination{
		Limit:   q.Limit,
		Offset:  q.Offset,
		HasMore: hasMore,
	}
	if q.HasFilters() || len(q.Types) > 0 {
		applied := q
		resp.AppliedFilters = &applied
	}

	span.SetAttributes(attribute.Int("search.total", resp.TotalCount))
	logger.Debug().
		Str("query", q.Text).
		Str("shape", shape.String()).
		Int("total", resp.TotalCount).
		Bool("incomplete", resp.Incomplete).
		Msg("search completed")

	return resp, nil
}

// normalize validates q and fills in defaults
func (e *SearchEngine) normalize(q *entities.SearchQuery) error {
	if q.Limit < 0 {
		return apperrors.NewInvalidParamsError("limit must be non-negative")
	}
	if q.Offset < 0 {
		return apperrors.NewInvalidParamsError("offset must be non-negative")
	}
	if q.Limit == 0 {
		q.Limit = e.cfg.DefaultLimit
	}

	if q.Lang == "" {
		q.Lang = entities.DefaultLanguage
	}
	if !entities.IsSupportedLanguage(q.Lang) {
		return apperrors.NewInvalidParamsError(fmt.Sprintf("unsupported language %q", q.Lang))
	}

	for _, k := range q.Types {
		if !k.Valid() {
			return apperrors.NewInvalidParamsError(fmt.Sprintf("invalid entity type %d", int(k)))
		}
	}

	attrs := q.Attributes
	if attrs.PriceMin != nil && attrs.PriceMax != nil && *attrs.PriceMin > *attrs.PriceMax {
		return apperrors.NewInvalidParamsError("price_min must not exceed price_max")
	}

	q.Text = utils.NormalizeText(q.Text)
	if !q.HasFilters() && utf8.RuneCountInString(q.Text) < e.cfg.MinQueryLength {
		return apperrors.NewQueryTooShortError(e.cfg.MinQueryLength)
	}

	return nil
}

// dispatch runs every applicable searcher concurrently. Outcomes come back
// in dispatch order regardless of completion order.
func (e *SearchEngine) dispatch(ctx context.Context, q *entities.SearchQuery, shape entities.QueryShape) ([]searchOutcome, error) {
	asOf := e.cfg.Now()

	type planned struct {
		searcher *EntitySearcher
		spec     repositories.LookupSpec
	}
	var plans []planned
	for _, s := range e.searchers {
		if spec, ok := s.Plan(q, q.Text, shape, e.cfg.PerKindCap, asOf); ok {
			plans = append(plans, planned{searcher: s, spec: spec})
		}
	}

	outcomes := make([]searchOutcome, len(plans))
	g, gctx := errgroup.WithContext(ctx)

	for i, p := range plans {
		g.Go(func() error {
			kind := p.searcher.Kind()
			rows, err := e.lookup(gctx, p.searcher, p.spec)
			if err != nil {
				if e.cfg.PartialResults && ctx.Err() == nil {
					observability.LoggerFromContext(ctx).Warn().
						Err(err).
						Str("kind", kind.String()).
						Msg("searcher failed, returning partial results")
					outcomes[i] = searchOutcome{kind: kind, failed: true}
					return nil
				}
				return fmt.Errorf("%s searcher: %w", kind, err)
			}

			o := searchOutcome{kind: kind, rows: rows}
			if len(rows) > e.cfg.PerKindCap {
				o.rows = rows[:e.cfg.PerKindCap]
				o.truncated = true
			}
			outcomes[i] = o
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.NewServerError("search lookup failed", err)
	}

	return outcomes, nil
}

func (e *SearchEngine) lookup(ctx context.Context, s *EntitySearcher, spec repositories.LookupSpec) ([]*entities.IndexedEntityRow, error) {
	ctx, span := observability.StartSpan(ctx, "search.lookup")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.kind", spec.Kind.String()),
		attribute.String("search.mode", spec.Mode.String()),
	)

	start := time.Now()
	rows, err := s.Search(ctx, spec)

	lookupDurationOnce.Do(initLookupDuration)
	if lookupDuration != nil {
		lookupDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(
				attribute.String("search.kind", spec.Kind.String()),
				attribute.Bool("search.error", err != nil),
			))
	}

	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.rows", len(rows)))
	return rows, nil
}

// Deduplicate keeps the first row seen for each (kind, code) pair
func Deduplicate(rows []*entities.IndexedEntityRow) []*entities.IndexedEntityRow {
	type key struct {
		kind entities.EntityKind
		code string
	}
	seen := make(map[key]struct{}, len(rows))
	out := make([]*entities.IndexedEntityRow, 0, len(rows))
	for _, row := range rows {
		k := key{kind: row.Kind, code: row.Code}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}

func paginate(ranked []entities.ScoredResult, limit, offset int) ([]entities.ScoredResult, bool) {
	n := len(ranked)
	if offset >= n {
		return nil, false
	}
	remaining := n - offset
	if limit > remaining {
		limit = remaining
	}
	return ranked[offset : offset+limit], limit < remaining
}

// toResultItem projects a scored row onto the fields its kind exposes
func toResultItem(r entities.ScoredResult, lang string) entities.SearchResultItem {
	row := r.Row
	item := entities.SearchResultItem{
		EntityType:   row.Kind,
		Code:         row.Code,
		Name:         r.DisplayName,
		MatchedField: r.MatchedField,
		Score:        r.Score,
	}

	withParent := func() {
		item.ParentCode = row.ParentCode
		item.ParentName = row.ParentName.Resolve(lang)
	}

	switch row.Kind {
	case entities.KindSubstanceRoot:
	case entities.KindGenericProduct:
		withParent()
	case entities.KindBrandedProduct:
		withParent()
		item.CompanyName = row.CompanyName
		item.BlackTriangle = row.BlackTriangle
	case entities.KindPackage:
		withParent()
		item.CompanyName = row.CompanyName
		item.PackDisplayValue = row.PackDisplayValue
		item.Price = row.Price
		item.Reimbursable = row.Reimbursable
		item.CNK = row.CNK
		item.BlackTriangle = row.BlackTriangle
	case entities.KindManufacturer:
		item.ProductCount = row.ProductCount
	case entities.KindTherapeuticGroup:
	case entities.KindRawSubstance:
	case entities.KindClassification:
		withParent()
	}

	return item
}
