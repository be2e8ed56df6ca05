package entities

import (
	"time"
)

// Supported display languages
const (
	LangDutch   = "nl"
	LangFrench  = "fr"
	LangGerman  = "de"
	LangEnglish = "en"

	DefaultLanguage = LangEnglish
)

// SupportedLanguages is the fixed set of language tags a name can carry.
var SupportedLanguages = []string{LangDutch, LangFrench, LangGerman, LangEnglish}

// IsSupportedLanguage reports whether lang is one of SupportedLanguages
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// LocalizedText maps a language tag to a string. Not every language is
// guaranteed to be present.
type LocalizedText map[string]string

// Resolve returns the text for lang, falling back to English, then the
// remaining supported languages in storage order.
func (t LocalizedText) Resolve(lang string) string {
	if len(t) == 0 {
		return ""
	}
	if v := t[lang]; v != "" {
		return v
	}
	if v := t[LangEnglish]; v != "" {
		return v
	}
	for _, l := range SupportedLanguages {
		if v := t[l]; v != "" {
			return v
		}
	}
	return ""
}

// Values returns every non-empty translation
func (t LocalizedText) Values() []string {
	values := make([]string, 0, len(t))
	for _, l := range SupportedLanguages {
		if v := t[l]; v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Relations holds the codes of the entities a row is linked to. Relationship
// filters compare against these.
type Relations struct {
	SubstanceRootCode    string   `json:"vtm_code,omitempty"`
	GenericProductCode   string   `json:"vmp_code,omitempty"`
	BrandedProductCode   string   `json:"amp_code,omitempty"`
	ClassificationCode   string   `json:"atc_code,omitempty"`
	ManufacturerCode     string   `json:"company_code,omitempty"`
	TherapeuticGroupCode string   `json:"vmp_group_code,omitempty"`
	RawSubstanceCodes    []string `json:"substance_codes,omitempty"`
}

// Attributes are the product-level fields used only by extended filters.
// Only branded products and packages carry them.
type Attributes struct {
	FormCode              string        `json:"form_code,omitempty"`
	FormName              LocalizedText `json:"form_name,omitempty"`
	RouteCode             string        `json:"route_code,omitempty"`
	RouteName             LocalizedText `json:"route_name,omitempty"`
	ReimbursementCategory string        `json:"reimbursement_category,omitempty"`
	PriorAuthorization    bool          `json:"chapter_iv,omitempty"`
	DeliveryChannel       string        `json:"delivery_channel,omitempty"`
	MedicineType          string        `json:"medicine_type,omitempty"`
}

// IndexedEntityRow is one denormalized row of an entity index collection.
// Rows are produced by the sync pipeline and never mutated by search.
type IndexedEntityRow struct {
	Kind             EntityKind    `json:"entity_type"`
	Code             string        `json:"code"`
	Name             LocalizedText `json:"name"`
	ParentCode       string        `json:"parent_code,omitempty"`
	ParentName       LocalizedText `json:"parent_name,omitempty"`
	CompanyName      string        `json:"company_name,omitempty"`
	PackDisplayValue string        `json:"pack_display_value,omitempty"`
	Price            *float64      `json:"price,omitempty"`
	Reimbursable     *bool         `json:"reimbursable,omitempty"`
	CNK              string        `json:"cnk,omitempty"`
	ProductCount     *int          `json:"product_count,omitempty"`
	BlackTriangle    *bool         `json:"black_triangle,omitempty"`
	IngredientNames  []string      `json:"ingredient_names,omitempty"`
	ExpiresAt        *time.Time    `json:"end_date,omitempty"`
	Relations        Relations     `json:"relations"`
	Attributes       Attributes    `json:"attributes"`
}

// Expired reports whether the row's expiry date lies before now
func (r *IndexedEntityRow) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// DisplayName resolves the localized name for lang
func (r *IndexedEntityRow) DisplayName(lang string) string {
	return r.Name.Resolve(lang)
}
