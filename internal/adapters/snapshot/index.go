package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/domain/repositories"
	"github.com/to-ny/medsearch-sub001/pkg/utils"
)

// File is the on-disk snapshot layout written by the sync pipeline
type File struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	Rows        []*entities.IndexedEntityRow `json:"rows"`
}

// Index is a read-only in-memory entity index. It matches rows the same
// way the database adapter does, so it can stand in for it in the CLI and
// in tests.
type Index struct {
	byKind map[entities.EntityKind][]*entities.IndexedEntityRow
}

// Load reads and validates a snapshot file
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	return NewIndex(file.Rows)
}

// NewIndex builds an index from rows. Every row needs a known kind and a
// code, and (kind, code) must be unique.
func NewIndex(rows []*entities.IndexedEntityRow) (*Index, error) {
	type key struct {
		kind entities.EntityKind
		code string
	}
	seen := make(map[key]struct{}, len(rows))
	byKind := make(map[entities.EntityKind][]*entities.IndexedEntityRow)

	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("row at index %d: empty", i)
		}
		if !row.Kind.Valid() {
			return nil, fmt.Errorf("row at index %d: invalid entity type %d", i, int(row.Kind))
		}
		if row.Code == "" {
			return nil, fmt.Errorf("row at index %d: missing code", i)
		}
		k := key{kind: row.Kind, code: row.Code}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("row at index %d: duplicate %s code %q", i, row.Kind, row.Code)
		}
		seen[k] = struct{}{}
		byKind[row.Kind] = append(byKind[row.Kind], row)
	}

	for _, kindRows := range byKind {
		sort.Slice(kindRows, func(i, j int) bool { return kindRows[i].Code < kindRows[j].Code })
	}

	return &Index{byKind: byKind}, nil
}

// Len returns the number of rows of kind
func (idx *Index) Len(kind entities.EntityKind) int {
	return len(idx.byKind[kind])
}

// Rows returns every row in kind priority then code order
func (idx *Index) Rows() []*entities.IndexedEntityRow {
	var out []*entities.IndexedEntityRow
	for _, kind := range entities.AllKinds {
		out = append(out, idx.byKind[kind]...)
	}
	return out
}

// Lookup implements repositories.EntityIndexRepository
func (idx *Index) Lookup(ctx context.Context, spec repositories.LookupSpec) ([]*entities.IndexedEntityRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.Limit <= 0 {
		return nil, nil
	}

	text := utils.FoldText(spec.Text)
	var out []*entities.IndexedEntityRow

	for _, row := range idx.byKind[spec.Kind] {
		if !spec.AsOf.IsZero() && row.Expired(spec.AsOf) {
			continue
		}
		if !matchesText(row, text, spec.Mode) {
			continue
		}
		if !matchesRelations(row, spec.Relations) {
			continue
		}
		if spec.Attributes != nil && !matchesAttributes(row, spec.Attributes) {
			continue
		}
		out = append(out, row)
		if len(out) == spec.Limit {
			break
		}
	}

	return out, nil
}

// Ping implements repositories.EntityIndexRepository
func (idx *Index) Ping(ctx context.Context) error {
	return ctx.Err()
}

func matchesText(row *entities.IndexedEntityRow, text string, mode repositories.MatchMode) bool {
	if text == "" {
		return true
	}

	switch mode {
	case repositories.MatchCodePrefix:
		return strings.HasPrefix(strings.ToLower(row.Code), text)
	case repositories.MatchShortCodeExact:
		return row.CNK == text
	}

	if strings.HasPrefix(strings.ToLower(row.Code), text) {
		return true
	}
	for _, v := range row.Name.Values() {
		if strings.Contains(utils.FoldText(v), text) {
			return true
		}
	}
	for _, v := range row.ParentName.Values() {
		if strings.Contains(utils.FoldText(v), text) {
			return true
		}
	}
	if row.CompanyName != "" && strings.Contains(utils.FoldText(row.CompanyName), text) {
		return true
	}
	for _, v := range row.IngredientNames {
		if strings.Contains(utils.FoldText(v), text) {
			return true
		}
	}
	return false
}

func matchesRelations(row *entities.IndexedEntityRow, conds []repositories.RelationCondition) bool {
	for _, c := range conds {
		if !matchesRelation(row, c) {
			return false
		}
	}
	return true
}

func matchesRelation(row *entities.IndexedEntityRow, c repositories.RelationCondition) bool {
	match := func(v string) bool {
		if c.Prefix {
			return v != "" && strings.HasPrefix(strings.ToUpper(v), strings.ToUpper(c.Value))
		}
		return v == c.Value
	}

	rel := row.Relations
	switch c.Field {
	case repositories.RelationSelf:
		return match(row.Code)
	case repositories.RelationSubstanceRoot:
		return match(rel.SubstanceRootCode)
	case repositories.RelationGenericProduct:
		return match(rel.GenericProductCode)
	case repositories.RelationBrandedProduct:
		return match(rel.BrandedProductCode)
	case repositories.RelationClassification:
		return match(rel.ClassificationCode)
	case repositories.RelationManufacturer:
		return match(rel.ManufacturerCode)
	case repositories.RelationTherapeuticGroup:
		return match(rel.TherapeuticGroupCode)
	case repositories.RelationRawSubstance:
		for _, code := range rel.RawSubstanceCodes {
			if match(code) {
				return true
			}
		}
		return false
	}
	return false
}

func matchesAttributes(row *entities.IndexedEntityRow, f *entities.AttributeFilters) bool {
	a := row.Attributes

	if len(f.FormCodes) > 0 && !contains(f.FormCodes, a.FormCode) {
		return false
	}
	if len(f.RouteCodes) > 0 && !contains(f.RouteCodes, a.RouteCode) {
		return false
	}
	if len(f.ReimbursementCategories) > 0 && !contains(f.ReimbursementCategories, a.ReimbursementCategory) {
		return false
	}
	if f.PriceMin != nil && (row.Price == nil || *row.Price < *f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && (row.Price == nil || *row.Price > *f.PriceMax) {
		return false
	}
	if f.ReimbursableOnly && (row.Reimbursable == nil || !*row.Reimbursable) {
		return false
	}
	if f.BlackTriangleOnly && (row.BlackTriangle == nil || !*row.BlackTriangle) {
		return false
	}
	if f.DeliveryChannel != "" && a.DeliveryChannel != string(f.DeliveryChannel) {
		return false
	}
	if f.MedicineType != "" && a.MedicineType != string(f.MedicineType) {
		return false
	}
	return true
}

func contains(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
