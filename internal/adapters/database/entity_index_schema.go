package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	apperrors "github.com/to-ny/medsearch-sub001/pkg/errors"
)

const entityTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	code                   TEXT PRIMARY KEY,
	name_nl                TEXT,
	name_fr                TEXT,
	name_de                TEXT,
	name_en                TEXT,
	parent_code            TEXT,
	parent_name_nl         TEXT,
	parent_name_fr         TEXT,
	parent_name_de         TEXT,
	parent_name_en         TEXT,
	company_name           TEXT,
	pack_display_value     TEXT,
	price                  NUMERIC(12, 2),
	reimbursable           BOOLEAN,
	cnk                    TEXT,
	product_count          INTEGER,
	black_triangle         BOOLEAN,
	ingredient_names       TEXT[],
	end_date               TIMESTAMPTZ,
	vtm_code               TEXT,
	vmp_code               TEXT,
	amp_code               TEXT,
	atc_code               TEXT,
	company_code           TEXT,
	vmp_group_code         TEXT,
	substance_codes        TEXT[],
	form_code              TEXT,
	form_name_nl           TEXT,
	form_name_fr           TEXT,
	form_name_de           TEXT,
	form_name_en           TEXT,
	route_code             TEXT,
	route_name_nl          TEXT,
	route_name_fr          TEXT,
	route_name_de          TEXT,
	route_name_en          TEXT,
	reimbursement_category TEXT,
	chapter_iv             BOOLEAN,
	delivery_channel       TEXT,
	medicine_type          TEXT
);
CREATE INDEX IF NOT EXISTS %[1]s_cnk_idx ON %[1]s (cnk);
CREATE INDEX IF NOT EXISTS %[1]s_company_code_idx ON %[1]s (company_code);
CREATE INDEX IF NOT EXISTS %[1]s_end_date_idx ON %[1]s (end_date);
`

// insertBatchSize bounds the rows per INSERT statement
const insertBatchSize = 500

// CreateSchema creates the per-kind tables when missing
func (a *EntityIndexAdapter) CreateSchema(ctx context.Context) error {
	for _, kind := range entities.AllKinds {
		ddl := fmt.Sprintf(entityTableDDL, pq.QuoteIdentifier(a.TableName(kind)))
		if _, err := a.client.DB().ExecContext(ctx, ddl); err != nil {
			return apperrors.NewServerError(fmt.Sprintf("failed to create %s table", kind), err)
		}
	}
	return nil
}

// ReplaceRows swaps the contents of kind's table for rows in a single
// transaction, so readers never observe a half-loaded table.
func (a *EntityIndexAdapter) ReplaceRows(ctx context.Context, kind entities.EntityKind, rows []*entities.IndexedEntityRow) error {
	tx, err := a.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewServerError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	table := a.TableName(kind)

	query, args, err := a.db.Delete(table).ToSQL()
	if err != nil {
		return apperrors.NewServerError("failed to build delete query", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewServerError(fmt.Sprintf("failed to clear %s", table), err)
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		records := make([]interface{}, 0, end-start)
		for _, row := range rows[start:end] {
			if row.Kind != kind {
				return apperrors.NewInvalidParamsError(fmt.Sprintf("row %s is a %s, not a %s", row.Code, row.Kind, kind))
			}
			records = append(records, rowRecord(row))
		}

		query, args, err := a.db.Insert(table).Prepared(true).Rows(records...).ToSQL()
		if err != nil {
			return apperrors.NewServerError("failed to build insert query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewServerError(fmt.Sprintf("failed to insert into %s", table), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewServerError("failed to commit transaction", err)
	}
	return nil
}

func rowRecord(row *entities.IndexedEntityRow) goqu.Record {
	nullable := func(s string) interface{} {
		if s == "" {
			return nil
		}
		return s
	}

	record := goqu.Record{
		"code":                   row.Code,
		"name_nl":                nullable(row.Name[entities.LangDutch]),
		"name_fr":                nullable(row.Name[entities.LangFrench]),
		"name_de":                nullable(row.Name[entities.LangGerman]),
		"name_en":                nullable(row.Name[entities.LangEnglish]),
		"parent_code":            nullable(row.ParentCode),
		"parent_name_nl":         nullable(row.ParentName[entities.LangDutch]),
		"parent_name_fr":         nullable(row.ParentName[entities.LangFrench]),
		"parent_name_de":         nullable(row.ParentName[entities.LangGerman]),
		"parent_name_en":         nullable(row.ParentName[entities.LangEnglish]),
		"company_name":           nullable(row.CompanyName),
		"pack_display_value":     nullable(row.PackDisplayValue),
		"price":                  row.Price,
		"reimbursable":           row.Reimbursable,
		"cnk":                    nullable(row.CNK),
		"product_count":          row.ProductCount,
		"black_triangle":         row.BlackTriangle,
		"ingredient_names":       pq.Array(row.IngredientNames),
		"end_date":               row.ExpiresAt,
		"vtm_code":               nullable(row.Relations.SubstanceRootCode),
		"vmp_code":               nullable(row.Relations.GenericProductCode),
		"amp_code":               nullable(row.Relations.BrandedProductCode),
		"atc_code":               nullable(row.Relations.ClassificationCode),
		"company_code":           nullable(row.Relations.ManufacturerCode),
		"vmp_group_code":         nullable(row.Relations.TherapeuticGroupCode),
		"substance_codes":        pq.Array(row.Relations.RawSubstanceCodes),
		"form_code":              nullable(row.Attributes.FormCode),
		"form_name_nl":           nullable(row.Attributes.FormName[entities.LangDutch]),
		"form_name_fr":           nullable(row.Attributes.FormName[entities.LangFrench]),
		"form_name_de":           nullable(row.Attributes.FormName[entities.LangGerman]),
		"form_name_en":           nullable(row.Attributes.FormName[entities.LangEnglish]),
		"route_code":             nullable(row.Attributes.RouteCode),
		"route_name_nl":          nullable(row.Attributes.RouteName[entities.LangDutch]),
		"route_name_fr":          nullable(row.Attributes.RouteName[entities.LangFrench]),
		"route_name_de":          nullable(row.Attributes.RouteName[entities.LangGerman]),
		"route_name_en":          nullable(row.Attributes.RouteName[entities.LangEnglish]),
		"reimbursement_category": nullable(row.Attributes.ReimbursementCategory),
		"chapter_iv":             row.Attributes.PriorAuthorization,
		"delivery_channel":       nullable(row.Attributes.DeliveryChannel),
		"medicine_type":          nullable(row.Attributes.MedicineType),
	}

	return record
}
