package services

import (
	"strings"
	"unicode/utf8"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/pkg/utils"
)

// Score ladder. Exact identity beats prefix beats substring beats a match on
// a secondary field.
const (
	scoreExactName      = 1.0
	scoreExactCode      = 0.95
	scoreNamePrefix     = 0.8
	scoreWordPrefix     = 0.6
	scoreCompanyName    = 0.5
	scoreIngredientName = 0.5
	scoreNameSubstring  = 0.4
	scoreFallback       = 0.2

	lengthBonus = 0.1
)

// ScoreCandidate scores row against the folded query q in language lang.
// The first matching rung wins. A candidate reaching the fallback was
// matched by its searcher through a field the scorer does not re-derive
// (code prefix, parent name, another language).
func ScoreCandidate(row *entities.IndexedEntityRow, q, lang string) entities.ScoredResult {
	displayName := row.DisplayName(lang)
	result := entities.ScoredResult{
		Row:         row,
		DisplayName: displayName,
	}

	// Filter-only searches carry no text to rank by.
	if q == "" {
		result.Score, result.MatchedField = scoreExactName, entities.MatchedName
		return result
	}

	name := utils.FoldText(displayName)
	ratio := lengthRatio(q, name)

	switch {
	case name == q:
		result.Score, result.MatchedField = scoreExactName, entities.MatchedName
	case strings.ToLower(row.Code) == q:
		result.Score, result.MatchedField = scoreExactCode, entities.MatchedCode
	case row.CNK != "" && row.CNK == q:
		result.Score, result.MatchedField = scoreExactCode, entities.MatchedShortCode
	case strings.HasPrefix(name, q):
		result.Score, result.MatchedField = scoreNamePrefix+ratio*lengthBonus, entities.MatchedName
	case anyWordHasPrefix(name, q):
		result.Score, result.MatchedField = scoreWordPrefix+ratio*lengthBonus, entities.MatchedName
	case strings.Contains(name, q):
		result.Score, result.MatchedField = scoreNameSubstring, entities.MatchedName
	case row.CompanyName != "" && strings.Contains(utils.FoldText(row.CompanyName), q):
		result.Score, result.MatchedField = scoreCompanyName, entities.MatchedCompanyName
	case anyContains(row.IngredientNames, q):
		result.Score, result.MatchedField = scoreIngredientName, entities.MatchedIngredient
	default:
		result.Score, result.MatchedField = scoreFallback, entities.MatchedName
	}

	return result
}

func lengthRatio(q, name string) float64 {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return 0
	}
	return float64(utf8.RuneCountInString(q)) / float64(n)
}

func anyWordHasPrefix(name, q string) bool {
	for _, w := range utils.Words(name) {
		if strings.HasPrefix(w, q) {
			return true
		}
	}
	return false
}

func anyContains(values []string, q string) bool {
	for _, v := range values {
		if strings.Contains(utils.FoldText(v), q) {
			return true
		}
	}
	return false
}
