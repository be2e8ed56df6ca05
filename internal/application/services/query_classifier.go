package services

import (
	"regexp"
	"strings"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
)

var (
	cnkPattern = regexp.MustCompile(`^\d{7}$`)
	atcPattern = regexp.MustCompile(`^[A-Za-z]\d{2}[A-Za-z]{0,2}\d{0,2}$`)
)

// ClassifyQuery decides whether a query looks like a 7-digit CNK, an ATC
// code or free text. The result only changes how the package and ATC
// searchers match; every applicable searcher still runs.
func ClassifyQuery(query string) entities.QueryShape {
	q := strings.TrimSpace(query)
	switch {
	case cnkPattern.MatchString(q):
		return entities.ShapeNumericCode
	case atcPattern.MatchString(q):
		return entities.ShapeClassificationCode
	default:
		return entities.ShapeFreeText
	}
}
