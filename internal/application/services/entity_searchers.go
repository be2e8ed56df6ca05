package services

import (
	"context"
	"time"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/domain/repositories"
)

// EntitySearcher runs the bounded lookup for a single entity kind
type EntitySearcher struct {
	kind  entities.EntityKind
	index repositories.EntityIndexRepository
}

// NewEntitySearchers returns one searcher per kind in dispatch order
func NewEntitySearchers(index repositories.EntityIndexRepository) []*EntitySearcher {
	searchers := make([]*EntitySearcher, 0, len(entities.AllKinds))
	for _, kind := range entities.AllKinds {
		searchers = append(searchers, &EntitySearcher{kind: kind, index: index})
	}
	return searchers
}

// Kind returns the entity kind this searcher covers
func (s *EntitySearcher) Kind() entities.EntityKind {
	return s.kind
}

// Plan builds the lookup for q. It returns false when the searcher must not
// run: the kind is excluded by the types restriction, a relationship filter
// is active that this kind does not carry, or nothing would constrain the
// lookup at all.
func (s *EntitySearcher) Plan(q *entities.SearchQuery, text string, shape entities.QueryShape, perKindCap int, asOf time.Time) (repositories.LookupSpec, bool) {
	if !q.IncludesKind(s.kind) {
		return repositories.LookupSpec{}, false
	}

	relations, ok := relationConditions(s.kind, q.Relations)
	if !ok {
		return repositories.LookupSpec{}, false
	}

	spec := repositories.LookupSpec{
		Kind:      s.kind,
		Text:      text,
		Mode:      matchMode(s.kind, shape),
		Relations: relations,
		Limit:     perKindCap + 1,
		AsOf:      asOf,
	}

	if carriesAttributes(s.kind) && q.Attributes.Any() {
		attrs := q.Attributes
		spec.Attributes = &attrs
	}

	if text == "" && len(spec.Relations) == 0 && spec.Attributes == nil {
		return repositories.LookupSpec{}, false
	}

	return spec, true
}

// Search executes a planned lookup
func (s *EntitySearcher) Search(ctx context.Context, spec repositories.LookupSpec) ([]*entities.IndexedEntityRow, error) {
	return s.index.Lookup(ctx, spec)
}

// relationConditions maps the active relationship filters onto kind's own
// fields. The second result is false when an active filter has no meaning
// for kind.
func relationConditions(kind entities.EntityKind, f entities.RelationshipFilters) ([]repositories.RelationCondition, bool) {
	var conds []repositories.RelationCondition
	ok := true

	bind := func(value string, field repositories.RelationField, prefix, carried bool) {
		if value == "" {
			return
		}
		if !carried {
			ok = false
			return
		}
		conds = append(conds, repositories.RelationCondition{Field: field, Value: value, Prefix: prefix})
	}

	switch kind {
	case entities.KindSubstanceRoot:
		bind(f.SubstanceRootCode, repositories.RelationSelf, false, true)
		bind(f.GenericProductCode, 0, false, false)
		bind(f.BrandedProductCode, 0, false, false)
		bind(f.ClassificationCode, 0, false, false)
		bind(f.ManufacturerCode, 0, false, false)
		bind(f.TherapeuticGroupCode, 0, false, false)
		bind(f.RawSubstanceCode, 0, false, false)
	case entities.KindGenericProduct:
		bind(f.SubstanceRootCode, repositories.RelationSubstanceRoot, false, true)
		bind(f.GenericProductCode, repositories.RelationSelf, false, true)
		bind(f.BrandedProductCode, 0, false, false)
		bind(f.ClassificationCode, 0, false, false)
		bind(f.ManufacturerCode, 0, false, false)
		bind(f.TherapeuticGroupCode, repositories.RelationTherapeuticGroup, false, true)
		bind(f.RawSubstanceCode, 0, false, false)
	case entities.KindBrandedProduct:
		bind(f.SubstanceRootCode, repositories.RelationSubstanceRoot, false, true)
		bind(f.GenericProductCode, repositories.RelationGenericProduct, false, true)
		bind(f.BrandedProductCode, repositories.RelationSelf, false, true)
		bind(f.ClassificationCode, repositories.RelationClassification, true, true)
		bind(f.ManufacturerCode, repositories.RelationManufacturer, false, true)
		bind(f.TherapeuticGroupCode, 0, false, false)
		bind(f.RawSubstanceCode, repositories.RelationRawSubstance, false, true)
	case entities.KindPackage:
		bind(f.SubstanceRootCode, repositories.RelationSubstanceRoot, false, true)
		bind(f.GenericProductCode, repositories.RelationGenericProduct, false, true)
		bind(f.BrandedProductCode, repositories.RelationBrandedProduct, false, true)
		bind(f.ClassificationCode, repositories.RelationClassification, true, true)
		bind(f.ManufacturerCode, repositories.RelationManufacturer, false, true)
		bind(f.TherapeuticGroupCode, 0, false, false)
		bind(f.RawSubstanceCode, 0, false, false)
	case entities.KindManufacturer:
		bind(f.SubstanceRootCode, 0, false, false)
		bind(f.GenericProductCode, 0, false, false)
		bind(f.BrandedProductCode, 0, false, false)
		bind(f.ClassificationCode, 0, false, false)
		bind(f.ManufacturerCode, repositories.RelationSelf, false, true)
		bind(f.TherapeuticGroupCode, 0, false, false)
		bind(f.RawSubstanceCode, 0, false, false)
	case entities.KindTherapeuticGroup:
		bind(f.SubstanceRootCode, 0, false, false)
		bind(f.GenericProductCode, 0, false, false)
		bind(f.BrandedProductCode, 0, false, false)
		bind(f.ClassificationCode, 0, false, false)
		bind(f.ManufacturerCode, 0, false, false)
		bind(f.TherapeuticGroupCode, repositories.RelationSelf, false, true)
		bind(f.RawSubstanceCode, 0, false, false)
	case entities.KindRawSubstance:
		bind(f.SubstanceRootCode, 0, false, false)
		bind(f.GenericProductCode, 0, false, false)
		bind(f.BrandedProductCode, 0, false, false)
		bind(f.ClassificationCode, 0, false, false)
		bind(f.ManufacturerCode, 0, false, false)
		bind(f.TherapeuticGroupCode, 0, false, false)
		bind(f.RawSubstanceCode, repositories.RelationSelf, false, true)
	case entities.KindClassification:
		bind(f.SubstanceRootCode, 0, false, false)
		bind(f.GenericProductCode, 0, false, false)
		bind(f.BrandedProductCode, 0, false, false)
		bind(f.ClassificationCode, repositories.RelationSelf, true, true)
		bind(f.ManufacturerCode, 0, false, false)
		bind(f.TherapeuticGroupCode, 0, false, false)
		bind(f.RawSubstanceCode, 0, false, false)
	default:
		return nil, false
	}

	return conds, ok
}

// matchMode picks how kind compares the query text given its shape
func matchMode(kind entities.EntityKind, shape entities.QueryShape) repositories.MatchMode {
	switch kind {
	case entities.KindPackage:
		if shape == entities.ShapeNumericCode {
			return repositories.MatchShortCodeExact
		}
	case entities.KindClassification:
		if shape == entities.ShapeClassificationCode {
			return repositories.MatchCodePrefix
		}
	case entities.KindSubstanceRoot,
		entities.KindGenericProduct,
		entities.KindBrandedProduct,
		entities.KindManufacturer,
		entities.KindTherapeuticGroup,
		entities.KindRawSubstance:
	}
	return repositories.MatchSubstring
}

// carriesAttributes reports whether kind has form, route, price and the
// other product attributes.
func carriesAttributes(kind entities.EntityKind) bool {
	switch kind {
	case entities.KindBrandedProduct, entities.KindPackage:
		return true
	case entities.KindSubstanceRoot,
		entities.KindGenericProduct,
		entities.KindManufacturer,
		entities.KindTherapeuticGroup,
		entities.KindRawSubstance,
		entities.KindClassification:
		return false
	}
	return false
}
