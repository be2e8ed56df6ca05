package entities

import (
	"fmt"
	"strings"
)

// QueryShape is the advisory classification of a raw query string
type QueryShape int

const (
	ShapeFreeText QueryShape = iota
	ShapeNumericCode
	ShapeClassificationCode
)

func (s QueryShape) String() string {
	switch s {
	case ShapeNumericCode:
		return "cnk"
	case ShapeClassificationCode:
		return "atc"
	default:
		return "text"
	}
}

// MatchedField names the field that produced a result's score
type MatchedField string

const (
	MatchedName        MatchedField = "name"
	MatchedCode        MatchedField = "code"
	MatchedShortCode   MatchedField = "cnk"
	MatchedCompanyName MatchedField = "company_name"
	MatchedIngredient  MatchedField = "ingredient"
)

// DeliveryChannel restricts packages to where they are dispensed
type DeliveryChannel string

const (
	DeliveryPublic   DeliveryChannel = "P"
	DeliveryHospital DeliveryChannel = "H"
)

// ParseDeliveryChannel accepts the code or its long form
func ParseDeliveryChannel(s string) (DeliveryChannel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "p", "public":
		return DeliveryPublic, nil
	case "h", "hospital":
		return DeliveryHospital, nil
	}
	return "", fmt.Errorf("unknown delivery channel %q", s)
}

// MedicineType distinguishes the regulatory product family
type MedicineType string

const (
	MedicineAllopathic  MedicineType = "ALLOPATHIC"
	MedicineHomeopathic MedicineType = "HOMEOPATHIC"
	MedicineHerbal      MedicineType = "HERBAL"
	MedicineOther       MedicineType = "OTHER"
)

// ParseMedicineType validates a medicine type filter value
func ParseMedicineType(s string) (MedicineType, error) {
	t := MedicineType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case "", MedicineAllopathic, MedicineHomeopathic, MedicineHerbal, MedicineOther:
		return t, nil
	}
	return "", fmt.Errorf("unknown medicine type %q", s)
}

// RelationshipFilters restrict results to entities linked to a given code.
// Each field is an exact code match; empty means unset.
type RelationshipFilters struct {
	SubstanceRootCode    string `json:"vtm,omitempty"`
	GenericProductCode   string `json:"vmp,omitempty"`
	BrandedProductCode   string `json:"amp,omitempty"`
	ClassificationCode   string `json:"atc,omitempty"`
	ManufacturerCode     string `json:"company,omitempty"`
	TherapeuticGroupCode string `json:"vmp_group,omitempty"`
	RawSubstanceCode     string `json:"substance,omitempty"`
}

// Any reports whether at least one relationship filter is set
func (f RelationshipFilters) Any() bool {
	return f.SubstanceRootCode != "" || f.GenericProductCode != "" ||
		f.BrandedProductCode != "" || f.ClassificationCode != "" ||
		f.ManufacturerCode != "" || f.TherapeuticGroupCode != "" ||
		f.RawSubstanceCode != ""
}

// AttributeFilters apply to branded products and packages only. Code sets
// are OR'd internally; every set filter is AND'd with the others.
type AttributeFilters struct {
	FormCodes               []string        `json:"form,omitempty"`
	RouteCodes              []string        `json:"route,omitempty"`
	ReimbursementCategories []string        `json:"reimbursement_category,omitempty"`
	PriceMin                *float64        `json:"price_min,omitempty"`
	PriceMax                *float64        `json:"price_max,omitempty"`
	ReimbursableOnly        bool            `json:"reimbursable,omitempty"`
	BlackTriangleOnly       bool            `json:"black_triangle,omitempty"`
	DeliveryChannel         DeliveryChannel `json:"delivery,omitempty"`
	MedicineType            MedicineType    `json:"medicine_type,omitempty"`
}

// Any reports whether at least one attribute filter is set
func (f AttributeFilters) Any() bool {
	return len(f.FormCodes) > 0 || len(f.RouteCodes) > 0 ||
		len(f.ReimbursementCategories) > 0 || f.PriceMin != nil ||
		f.PriceMax != nil || f.ReimbursableOnly || f.BlackTriangleOnly ||
		f.DeliveryChannel != "" || f.MedicineType != ""
}

// SearchQuery is a single federated search request
type SearchQuery struct {
	Text       string              `json:"q"`
	Lang       string              `json:"lang"`
	Types      []EntityKind        `json:"types,omitempty"`
	Relations  RelationshipFilters `json:"relations"`
	Attributes AttributeFilters    `json:"attributes"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}

// HasFilters reports whether any relationship or attribute filter is set
func (q *SearchQuery) HasFilters() bool {
	return q.Relations.Any() || q.Attributes.Any()
}

// IncludesKind reports whether the types restriction admits kind
func (q *SearchQuery) IncludesKind(kind EntityKind) bool {
	if len(q.Types) == 0 {
		return true
	}
	for _, k := range q.Types {
		if k == kind {
			return true
		}
	}
	return false
}

// ScoredResult is a candidate row with its relevance score
type ScoredResult struct {
	Row          *IndexedEntityRow
	DisplayName  string
	Score        float64
	MatchedField MatchedField
}

// SearchResultItem is the response shape of a single result
type SearchResultItem struct {
	EntityType       EntityKind   `json:"entity_type"`
	Code             string       `json:"code"`
	Name             string       `json:"name"`
	ParentName       string       `json:"parent_name,omitempty"`
	ParentCode       string       `json:"parent_code,omitempty"`
	CompanyName      string       `json:"company_name,omitempty"`
	PackDisplayValue string       `json:"pack_display_value,omitempty"`
	Price            *float64     `json:"price,omitempty"`
	Reimbursable     *bool        `json:"reimbursable,omitempty"`
	CNK              string       `json:"cnk,omitempty"`
	ProductCount     *int         `json:"product_count,omitempty"`
	BlackTriangle    *bool        `json:"black_triangle,omitempty"`
	MatchedField     MatchedField `json:"matched_field"`
	Score            float64      `json:"score"`
}

// Pagination describes the returned window
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// SearchResponse is the result of a federated search
type SearchResponse struct {
	Query      string             `json:"query"`
	TotalCount int                `json:"total_count"`
	Results    []SearchResultItem `json:"results"`
	Facets     map[EntityKind]int `json:"facets"`
	Pagination Pagination         `json:"pagination"`

	// Incomplete is set when at least one searcher hit its per-kind cap,
	// meaning counts for those kinds are lower bounds.
	Incomplete     bool         `json:"incomplete,omitempty"`
	TruncatedKinds []EntityKind `json:"truncated_types,omitempty"`
	Partial        bool         `json:"partial,omitempty"`
	FailedKinds    []EntityKind `json:"failed_types,omitempty"`
	AppliedFilters *SearchQuery `json:"applied_filters,omitempty"`
}
