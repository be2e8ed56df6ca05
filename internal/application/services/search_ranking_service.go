package services

import (
	"sort"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SearchRankingService orders scored candidates into the final result list
type SearchRankingService struct{}

// NewSearchRankingService creates a ranking service
func NewSearchRankingService() *SearchRankingService {
	return &SearchRankingService{}
}

// Rank sorts results in place: score descending, then kind priority, then
// display name in lang's collation order, then code. The last key makes the
// order total so pages stay stable across identical calls.
func (s *SearchRankingService) Rank(results []entities.ScoredResult, lang string) {
	if len(results) < 2 {
		return
	}

	// Collators keep scratch buffers and are not safe for concurrent use.
	col := collate.New(collationTag(lang))

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := a.Row.Kind.Priority(), b.Row.Kind.Priority(); pa != pb {
			return pa < pb
		}
		if c := col.CompareString(a.DisplayName, b.DisplayName); c != 0 {
			return c < 0
		}
		return a.Row.Code < b.Row.Code
	})
}

func collationTag(lang string) language.Tag {
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	return tag
}
