package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/domain/repositories"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/clients/postgres"
	apperrors "github.com/to-ny/medsearch-sub001/pkg/errors"
	"github.com/to-ny/medsearch-sub001/pkg/utils"
)

// indexColumns is the select list shared by every entity table
var indexColumns = []interface{}{
	"code",
	"name_nl", "name_fr", "name_de", "name_en",
	"parent_code",
	"parent_name_nl", "parent_name_fr", "parent_name_de", "parent_name_en",
	"company_name", "pack_display_value", "price", "reimbursable", "cnk",
	"product_count", "black_triangle", "ingredient_names", "end_date",
	"vtm_code", "vmp_code", "amp_code", "atc_code", "company_code",
	"vmp_group_code", "substance_codes",
	"form_code", "form_name_nl", "form_name_fr", "form_name_de", "form_name_en",
	"route_code", "route_name_nl", "route_name_fr", "route_name_de", "route_name_en",
	"reimbursement_category", "chapter_iv",
	"delivery_channel", "medicine_type",
}

// EntityIndexAdapter implements EntityIndexRepository over one Postgres
// table per entity kind
type EntityIndexAdapter struct {
	client      *postgres.Client
	db          *goqu.Database
	sx          *sqlx.DB
	tablePrefix string
}

// NewEntityIndexAdapter creates a new entity index adapter
func NewEntityIndexAdapter(client *postgres.Client, tablePrefix string) *EntityIndexAdapter {
	return &EntityIndexAdapter{
		client:      client,
		db:          goqu.New("postgres", client.DB()),
		sx:          sqlx.NewDb(client.DB(), "postgres"),
		tablePrefix: tablePrefix,
	}
}

// TableName returns the table holding kind's rows
func (a *EntityIndexAdapter) TableName(kind entities.EntityKind) string {
	return a.tablePrefix + kind.String()
}

// Lookup runs one bounded lookup against spec.Kind's table
func (a *EntityIndexAdapter) Lookup(ctx context.Context, spec repositories.LookupSpec) ([]*entities.IndexedEntityRow, error) {
	query, args, err := a.buildLookupQuery(spec)
	if err != nil {
		return nil, apperrors.NewServerError("failed to build lookup query", err)
	}

	var records []indexRecord
	if err := a.sx.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, apperrors.NewServerError(fmt.Sprintf("failed to query %s index", spec.Kind), err)
	}

	out := make([]*entities.IndexedEntityRow, 0, len(records))
	for i := range records {
		out = append(out, records[i].toEntity(spec.Kind))
	}

	return out, nil
}

// Ping verifies the database is reachable
func (a *EntityIndexAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *EntityIndexAdapter) buildLookupQuery(spec repositories.LookupSpec) (string, []interface{}, error) {
	ds := a.db.Select(indexColumns...).From(goqu.T(a.TableName(spec.Kind)))

	if !spec.AsOf.IsZero() {
		ds = ds.Where(goqu.Or(
			goqu.C("end_date").IsNull(),
			goqu.C("end_date").Gte(spec.AsOf),
		))
	}

	if cond := textCondition(spec.Text, spec.Mode); cond != nil {
		ds = ds.Where(cond)
	}

	for _, rel := range spec.Relations {
		ds = ds.Where(relationCondition(rel))
	}

	if spec.Attributes != nil {
		for _, cond := range attributeConditions(spec.Attributes) {
			ds = ds.Where(cond)
		}
	}

	ds = ds.Order(goqu.C("code").Asc())
	if spec.Limit > 0 {
		ds = ds.Limit(uint(spec.Limit))
	}

	return ds.ToSQL()
}

func textCondition(text string, mode repositories.MatchMode) exp.Expression {
	text = utils.NormalizeText(text)
	if text == "" {
		return nil
	}

	prefix := utils.EscapeLike(text) + "%"

	switch mode {
	case repositories.MatchCodePrefix:
		return goqu.C("code").ILike(prefix)
	case repositories.MatchShortCodeExact:
		return goqu.C("cnk").Eq(text)
	}

	pattern := "%" + utils.EscapeLike(text) + "%"
	return goqu.Or(
		goqu.C("code").ILike(prefix),
		goqu.C("name_nl").ILike(pattern),
		goqu.C("name_fr").ILike(pattern),
		goqu.C("name_de").ILike(pattern),
		goqu.C("name_en").ILike(pattern),
		goqu.C("parent_name_nl").ILike(pattern),
		goqu.C("parent_name_fr").ILike(pattern),
		goqu.C("parent_name_de").ILike(pattern),
		goqu.C("parent_name_en").ILike(pattern),
		goqu.C("company_name").ILike(pattern),
		goqu.L("array_to_string(ingredient_names, ' ') ILIKE ?", pattern),
	)
}

func relationColumn(field repositories.RelationField) string {
	switch field {
	case repositories.RelationSelf:
		return "code"
	case repositories.RelationSubstanceRoot:
		return "vtm_code"
	case repositories.RelationGenericProduct:
		return "vmp_code"
	case repositories.RelationBrandedProduct:
		return "amp_code"
	case repositories.RelationClassification:
		return "atc_code"
	case repositories.RelationManufacturer:
		return "company_code"
	case repositories.RelationTherapeuticGroup:
		return "vmp_group_code"
	case repositories.RelationRawSubstance:
		return "substance_codes"
	}
	return ""
}

func relationCondition(rel repositories.RelationCondition) exp.Expression {
	if rel.Field == repositories.RelationRawSubstance {
		if rel.Prefix {
			return goqu.L("EXISTS (SELECT 1 FROM unnest(substance_codes) AS s(code) WHERE s.code ILIKE ?)", utils.EscapeLike(rel.Value)+"%")
		}
		return goqu.L("? = ANY(substance_codes)", rel.Value)
	}

	col := goqu.C(relationColumn(rel.Field))
	if rel.Prefix {
		return col.ILike(utils.EscapeLike(rel.Value) + "%")
	}
	return col.Eq(rel.Value)
}

func attributeConditions(f *entities.AttributeFilters) []exp.Expression {
	var conds []exp.Expression

	if len(f.FormCodes) > 0 {
		conds = append(conds, goqu.C("form_code").In(f.FormCodes))
	}
	if len(f.RouteCodes) > 0 {
		conds = append(conds, goqu.C("route_code").In(f.RouteCodes))
	}
	if len(f.ReimbursementCategories) > 0 {
		conds = append(conds, goqu.C("reimbursement_category").In(f.ReimbursementCategories))
	}
	if f.PriceMin != nil {
		conds = append(conds, goqu.C("price").Gte(*f.PriceMin))
	}
	if f.PriceMax != nil {
		conds = append(conds, goqu.C("price").Lte(*f.PriceMax))
	}
	if f.ReimbursableOnly {
		conds = append(conds, goqu.C("reimbursable").IsTrue())
	}
	if f.BlackTriangleOnly {
		conds = append(conds, goqu.C("black_triangle").IsTrue())
	}
	if f.DeliveryChannel != "" {
		conds = append(conds, goqu.C("delivery_channel").Eq(string(f.DeliveryChannel)))
	}
	if f.MedicineType != "" {
		conds = append(conds, goqu.C("medicine_type").Eq(string(f.MedicineType)))
	}

	return conds
}

// indexRecord is the raw shape of an entity table row
type indexRecord struct {
	Code                  string          `db:"code"`
	NameNL                sql.NullString  `db:"name_nl"`
	NameFR                sql.NullString  `db:"name_fr"`
	NameDE                sql.NullString  `db:"name_de"`
	NameEN                sql.NullString  `db:"name_en"`
	ParentCode            sql.NullString  `db:"parent_code"`
	ParentNameNL          sql.NullString  `db:"parent_name_nl"`
	ParentNameFR          sql.NullString  `db:"parent_name_fr"`
	ParentNameDE          sql.NullString  `db:"parent_name_de"`
	ParentNameEN          sql.NullString  `db:"parent_name_en"`
	CompanyName           sql.NullString  `db:"company_name"`
	PackDisplayValue      sql.NullString  `db:"pack_display_value"`
	Price                 sql.NullFloat64 `db:"price"`
	Reimbursable          sql.NullBool    `db:"reimbursable"`
	CNK                   sql.NullString  `db:"cnk"`
	ProductCount          sql.NullInt64   `db:"product_count"`
	BlackTriangle         sql.NullBool    `db:"black_triangle"`
	IngredientNames       pq.StringArray  `db:"ingredient_names"`
	EndDate               sql.NullTime    `db:"end_date"`
	VtmCode               sql.NullString  `db:"vtm_code"`
	VmpCode               sql.NullString  `db:"vmp_code"`
	AmpCode               sql.NullString  `db:"amp_code"`
	AtcCode               sql.NullString  `db:"atc_code"`
	CompanyCode           sql.NullString  `db:"company_code"`
	VmpGroupCode          sql.NullString  `db:"vmp_group_code"`
	SubstanceCodes        pq.StringArray  `db:"substance_codes"`
	FormCode              sql.NullString  `db:"form_code"`
	FormNameNL            sql.NullString  `db:"form_name_nl"`
	FormNameFR            sql.NullString  `db:"form_name_fr"`
	FormNameDE            sql.NullString  `db:"form_name_de"`
	FormNameEN            sql.NullString  `db:"form_name_en"`
	RouteCode             sql.NullString  `db:"route_code"`
	RouteNameNL           sql.NullString  `db:"route_name_nl"`
	RouteNameFR           sql.NullString  `db:"route_name_fr"`
	RouteNameDE           sql.NullString  `db:"route_name_de"`
	RouteNameEN           sql.NullString  `db:"route_name_en"`
	ReimbursementCategory sql.NullString  `db:"reimbursement_category"`
	ChapterIV             sql.NullBool    `db:"chapter_iv"`
	DeliveryChannel       sql.NullString  `db:"delivery_channel"`
	MedicineType          sql.NullString  `db:"medicine_type"`
}

func (r *indexRecord) toEntity(kind entities.EntityKind) *entities.IndexedEntityRow {
	row := &entities.IndexedEntityRow{
		Kind:             kind,
		Code:             r.Code,
		Name:             localized(r.NameNL, r.NameFR, r.NameDE, r.NameEN),
		ParentCode:       r.ParentCode.String,
		ParentName:       localized(r.ParentNameNL, r.ParentNameFR, r.ParentNameDE, r.ParentNameEN),
		CompanyName:      r.CompanyName.String,
		PackDisplayValue: r.PackDisplayValue.String,
		CNK:              r.CNK.String,
		IngredientNames:  []string(r.IngredientNames),
		Relations: entities.Relations{
			SubstanceRootCode:    r.VtmCode.String,
			GenericProductCode:   r.VmpCode.String,
			BrandedProductCode:   r.AmpCode.String,
			ClassificationCode:   r.AtcCode.String,
			ManufacturerCode:     r.CompanyCode.String,
			TherapeuticGroupCode: r.VmpGroupCode.String,
			RawSubstanceCodes:    []string(r.SubstanceCodes),
		},
		Attributes: entities.Attributes{
			FormCode:              r.FormCode.String,
			FormName:              localized(r.FormNameNL, r.FormNameFR, r.FormNameDE, r.FormNameEN),
			RouteCode:             r.RouteCode.String,
			RouteName:             localized(r.RouteNameNL, r.RouteNameFR, r.RouteNameDE, r.RouteNameEN),
			ReimbursementCategory: r.ReimbursementCategory.String,
			PriorAuthorization:    r.ChapterIV.Bool,
			DeliveryChannel:       r.DeliveryChannel.String,
			MedicineType:          r.MedicineType.String,
		},
	}

	if r.Price.Valid {
		price := r.Price.Float64
		row.Price = &price
	}
	if r.Reimbursable.Valid {
		reimbursable := r.Reimbursable.Bool
		row.Reimbursable = &reimbursable
	}
	if r.BlackTriangle.Valid {
		blackTriangle := r.BlackTriangle.Bool
		row.BlackTriangle = &blackTriangle
	}
	if r.ProductCount.Valid {
		n := int(r.ProductCount.Int64)
		row.ProductCount = &n
	}
	if r.EndDate.Valid {
		endDate := r.EndDate.Time
		row.ExpiresAt = &endDate
	}

	return row
}

// localized maps the nl, fr, de, en column values onto a LocalizedText
func localized(nl, fr, de, en sql.NullString) entities.LocalizedText {
	var text entities.LocalizedText
	set := func(lang string, v sql.NullString) {
		if !v.Valid || v.String == "" {
			return
		}
		if text == nil {
			text = make(entities.LocalizedText, 4)
		}
		text[lang] = v.String
	}
	set(entities.LangDutch, nl)
	set(entities.LangFrench, fr)
	set(entities.LangGerman, de)
	set(entities.LangEnglish, en)
	return text
}
