package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/to-ny/medsearch-sub001/internal/adapters/snapshot"
	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/domain/repositories"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func en(name string) entities.LocalizedText {
	return entities.LocalizedText{entities.LangEnglish: name}
}

// fixtureRows is a small catalogue around paracetamol and atorvastatin
func fixtureRows() []*entities.IndexedEntityRow {
	expired := fixedNow.AddDate(-1, 0, 0)

	return []*entities.IndexedEntityRow{
		{
			Kind: entities.KindSubstanceRoot, Code: "1001",
			Name: entities.LocalizedText{"en": "Paracetamol", "nl": "Paracetamol", "fr": "Paracétamol"},
		},
		{
			Kind: entities.KindSubstanceRoot, Code: "1002",
			Name: en("Atorvastatin"),
		},
		{
			Kind: entities.KindGenericProduct, Code: "2001",
			Name:       en("Paracetamol 500 mg tablet"),
			ParentCode: "1001", ParentName: en("Paracetamol"),
			Relations: entities.Relations{SubstanceRootCode: "1001", TherapeuticGroupCode: "G1"},
		},
		{
			Kind: entities.KindGenericProduct, Code: "2002",
			Name:       en("Paracetamol 1 g tablet"),
			ParentCode: "1001", ParentName: en("Paracetamol"),
			Relations: entities.Relations{SubstanceRootCode: "1001", TherapeuticGroupCode: "G1"},
		},
		{
			Kind: entities.KindBrandedProduct, Code: "3001",
			Name:       en("Paracetamol EG 500 mg"),
			ParentCode: "2001", ParentName: en("Paracetamol 500 mg tablet"),
			CompanyName: "EG",
			Relations: entities.Relations{
				SubstanceRootCode: "1001", GenericProductCode: "2001",
				ClassificationCode: "N02BE01", ManufacturerCode: "C02",
				RawSubstanceCodes: []string{"S1"},
			},
			Attributes: entities.Attributes{FormCode: "TAB", RouteCode: "OR"},
		},
		{
			Kind: entities.KindBrandedProduct, Code: "3002",
			Name:       en("Paracetamol Sandoz 1 g"),
			ParentCode: "2002", ParentName: en("Paracetamol 1 g tablet"),
			CompanyName: "Sandoz",
			Relations: entities.Relations{
				SubstanceRootCode: "1001", GenericProductCode: "2002",
				ClassificationCode: "N02BE01", ManufacturerCode: "C03",
				RawSubstanceCodes: []string{"S1"},
			},
			Attributes: entities.Attributes{FormCode: "TAB", RouteCode: "OR"},
		},
		{
			Kind: entities.KindBrandedProduct, Code: "3003",
			Name:       en("Dafalgan"),
			ParentCode: "2001", ParentName: en("Paracetamol 500 mg tablet"),
			CompanyName:     "UPSA",
			BlackTriangle:   ptr(false),
			IngredientNames: []string{"Paracetamol"},
			Relations: entities.Relations{
				SubstanceRootCode: "1001", GenericProductCode: "2001",
				ClassificationCode: "N02BE01", ManufacturerCode: "C01",
				RawSubstanceCodes: []string{"S1"},
			},
			Attributes: entities.Attributes{FormCode: "EFF", RouteCode: "OR"},
		},
		{
			Kind: entities.KindBrandedProduct, Code: "3099",
			Name:        en("Paracetamol Withdrawn"),
			CompanyName: "EG",
			ExpiresAt:   &expired,
			Relations:   entities.Relations{ManufacturerCode: "C02"},
		},
		{
			Kind: entities.KindPackage, Code: "4001",
			Name:       en("Dafalgan 30 effervescent tablets"),
			ParentCode: "3003", ParentName: en("Dafalgan"),
			CompanyName: "UPSA", PackDisplayValue: "30 tablets",
			Price: ptr(4.5), Reimbursable: ptr(true), CNK: "1234567", BlackTriangle: ptr(false),
			Relations: entities.Relations{
				SubstanceRootCode: "1001", GenericProductCode: "2001", BrandedProductCode: "3003",
				ClassificationCode: "N02BE01", ManufacturerCode: "C01",
			},
			Attributes: entities.Attributes{FormCode: "EFF", RouteCode: "OR", DeliveryChannel: "P", MedicineType: "ALLOPATHIC"},
		},
		{
			Kind: entities.KindPackage, Code: "4002",
			Name:       en("Paracetamol EG 500 mg 100 tablets"),
			ParentCode: "3001", ParentName: en("Paracetamol EG 500 mg"),
			CompanyName: "EG", PackDisplayValue: "100 tablets",
			Price: ptr(7.2), Reimbursable: ptr(true), CNK: "7654321",
			Relations: entities.Relations{
				SubstanceRootCode: "1001", GenericProductCode: "2001", BrandedProductCode: "3001",
				ClassificationCode: "N02BE01", ManufacturerCode: "C02",
			},
			Attributes: entities.Attributes{FormCode: "TAB", RouteCode: "OR", DeliveryChannel: "P", MedicineType: "ALLOPATHIC"},
		},
		{Kind: entities.KindManufacturer, Code: "C01", Name: en("UPSA"), ProductCount: ptr(12)},
		{Kind: entities.KindManufacturer, Code: "C02", Name: en("EG"), ProductCount: ptr(340)},
		{Kind: entities.KindManufacturer, Code: "C03", Name: en("Sandoz"), ProductCount: ptr(410)},
		{Kind: entities.KindTherapeuticGroup, Code: "G1", Name: en("Paracetamol oral")},
		{Kind: entities.KindRawSubstance, Code: "S1", Name: en("Paracetamol")},
		{Kind: entities.KindClassification, Code: "C10AA05", Name: en("atorvastatin"), ParentCode: "C10AA"},
		{Kind: entities.KindClassification, Code: "N02BE01", Name: en("paracetamol"), ParentCode: "N02BE"},
	}
}

func fixtureIndex(t *testing.T) *snapshot.Index {
	t.Helper()
	idx, err := snapshot.NewIndex(fixtureRows())
	require.NoError(t, err)
	return idx
}

func fixtureRow(kind entities.EntityKind, code string) *entities.IndexedEntityRow {
	for _, r := range fixtureRows() {
		if r.Kind == kind && r.Code == code {
			return r
		}
	}
	return nil
}

// recordingIndex records every lookup it forwards
type recordingIndex struct {
	repositories.EntityIndexRepository

	mu    sync.Mutex
	specs []repositories.LookupSpec
}

func (r *recordingIndex) Lookup(ctx context.Context, spec repositories.LookupSpec) ([]*entities.IndexedEntityRow, error) {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()
	return r.EntityIndexRepository.Lookup(ctx, spec)
}

func (r *recordingIndex) specFor(kind entities.EntityKind) (repositories.LookupSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.specs {
		if s.Kind == kind {
			return s, true
		}
	}
	return repositories.LookupSpec{}, false
}

func (r *recordingIndex) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.specs)
}

// MockEntityIndex is a testify mock of the entity index
type MockEntityIndex struct {
	mock.Mock
}

func (m *MockEntityIndex) Lookup(ctx context.Context, spec repositories.LookupSpec) ([]*entities.IndexedEntityRow, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.IndexedEntityRow), args.Error(1)
}

func (m *MockEntityIndex) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func kindIs(kind entities.EntityKind) interface{} {
	return mock.MatchedBy(func(spec repositories.LookupSpec) bool { return spec.Kind == kind })
}

func kindIsNot(kind entities.EntityKind) interface{} {
	return mock.MatchedBy(func(spec repositories.LookupSpec) bool { return spec.Kind != kind })
}

func newTestEngine(index repositories.EntityIndexRepository, mutate ...func(*SearchEngineConfig)) *SearchEngine {
	cfg := DefaultSearchEngineConfig()
	cfg.Now = func() time.Time { return fixedNow }
	for _, m := range mutate {
		m(&cfg)
	}
	return NewSearchEngine(index, cfg)
}
