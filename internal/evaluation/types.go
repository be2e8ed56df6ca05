package evaluation

import (
	"time"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
)

// Category groups golden queries by what the user typed
type Category string

const (
	CategoryName   Category = "name"   // e.g., "paracetamol", "dafalgan"
	CategoryCode   Category = "code"   // e.g., "1234567", "N02BE01"
	CategoryFilter Category = "filter" // e.g., company C01 with no text
)

// IsValid checks if the category value is one of the defined constants.
func (c Category) IsValid() bool {
	switch c {
	case CategoryName, CategoryCode, CategoryFilter:
		return true
	}
	return false
}

// GoldenQuery is a labeled query with the results a good ranking returns.
// Expected entries are "<type>:<code>" keys, e.g. "ampp:4001".
type GoldenQuery struct {
	ID         string                       `json:"id"`
	Query      string                       `json:"query"`
	Lang       string                       `json:"lang,omitempty"`
	Types      []entities.EntityKind        `json:"types,omitempty"`
	Relations  entities.RelationshipFilters `json:"relations"`
	Category   Category                     `json:"category"`
	Expected   []string                     `json:"expected"`
	Difficulty string                       `json:"difficulty"` // easy, medium, hard
}

// SearchQuery converts the golden query into an engine request
func (g GoldenQuery) SearchQuery(limit int) entities.SearchQuery {
	return entities.SearchQuery{
		Text:      g.Query,
		Lang:      g.Lang,
		Types:     g.Types,
		Relations: g.Relations,
		Limit:     limit,
	}
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID     string        `json:"id"`
	Query       string        `json:"query"`
	Category    Category      `json:"category"`
	RecallAtK   float64       `json:"recall"`
	MRRAtK      float64       `json:"mrr"`
	ResultCount int           `json:"result_count"`
	Retrieved   []string      `json:"retrieved"`
	Latency     time.Duration `json:"latency_ns"`
	Err         error         `json:"-"`
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	K               int                           `json:"k"`
	TotalQueries    int                           `json:"total_queries"`
	FailedQueries   int                           `json:"failed_queries"`
	AvgRecallAtK    float64                       `json:"avg_recall"`
	AvgMRRAtK       float64                       `json:"avg_mrr"`
	AvgLatency      time.Duration                 `json:"avg_latency_ns"`
	QueriesWithHits int                           `json:"queries_with_hits"`
	ByCategory      map[Category]*CategorySummary `json:"by_category"`
	Results         []EvalResult                  `json:"results"`
}

// CategorySummary holds metrics grouped by category.
type CategorySummary struct {
	Count        int     `json:"count"`
	AvgRecallAtK float64 `json:"avg_recall"`
	AvgMRRAtK    float64 `json:"avg_mrr"`
}

// ResultKey identifies a search result in golden files
func ResultKey(kind entities.EntityKind, code string) string {
	return kind.String() + ":" + code
}
