package repositories

import (
	"context"
	"time"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
)

// MatchMode selects how the query text is compared against a collection
type MatchMode int

const (
	// MatchSubstring matches names, parent name and company name by
	// substring and the entity code by prefix.
	MatchSubstring MatchMode = iota

	// MatchCodePrefix matches the entity code by prefix only.
	MatchCodePrefix

	// MatchShortCodeExact matches the linked CNK exactly.
	MatchShortCodeExact
)

func (m MatchMode) String() string {
	switch m {
	case MatchCodePrefix:
		return "code_prefix"
	case MatchShortCodeExact:
		return "cnk_exact"
	default:
		return "substring"
	}
}

// RelationField names the row field a relationship condition compares
type RelationField int

const (
	RelationSelf RelationField = iota
	RelationSubstanceRoot
	RelationGenericProduct
	RelationBrandedProduct
	RelationClassification
	RelationManufacturer
	RelationTherapeuticGroup
	RelationRawSubstance
)

// RelationCondition restricts a lookup to rows whose related code equals
// (or, when Prefix is set, starts with) Value.
type RelationCondition struct {
	Field  RelationField
	Value  string
	Prefix bool
}

// LookupSpec is a bounded lookup against one entity collection
type LookupSpec struct {
	Kind       entities.EntityKind
	Text       string
	Mode       MatchMode
	Relations  []RelationCondition
	Attributes *entities.AttributeFilters // nil when the kind carries no attributes
	Limit      int
	AsOf       time.Time
}

// EntityIndexRepository reads the denormalized entity collections
type EntityIndexRepository interface {
	// Lookup returns at most spec.Limit rows of spec.Kind matching spec,
	// ordered by code. Expired rows are never returned.
	Lookup(ctx context.Context, spec LookupSpec) ([]*entities.IndexedEntityRow, error)

	// Ping verifies the backing store is reachable
	Ping(ctx context.Context) error
}
