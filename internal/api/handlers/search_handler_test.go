package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/to-ny/medsearch-sub001/internal/adapters/snapshot"
	"github.com/to-ny/medsearch-sub001/internal/api/handlers"
	"github.com/to-ny/medsearch-sub001/internal/application/services"
	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	apperrors "github.com/to-ny/medsearch-sub001/pkg/errors"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResponse, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SearchResponse), args.Error(1)
}

type apiResponse struct {
	Success bool                     `json:"success"`
	Data    *entities.SearchResponse `json:"data"`
	Error   *struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Guidance bool   `json:"guidance"`
	} `json:"error"`
}

func doSearch(t *testing.T, h *handlers.SearchHandler, rawQuery string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/search?"+rawQuery, nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	var body apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSearchHandler_PassesParsedQuery(t *testing.T) {
	svc := new(MockSearchService)
	handler := handlers.NewSearchHandler(svc, 100)

	want := entities.SearchQuery{
		Text:   "paracetamol",
		Lang:   "fr",
		Types:  []entities.EntityKind{entities.KindBrandedProduct, entities.KindPackage},
		Limit:  10,
		Offset: 20,
		Relations: entities.RelationshipFilters{
			ManufacturerCode:   "C01",
			ClassificationCode: "N02BE01",
		},
		Attributes: entities.AttributeFilters{
			FormCodes:        []string{"TAB", "CAP"},
			ReimbursableOnly: true,
			DeliveryChannel:  entities.DeliveryPublic,
		},
	}
	svc.On("Search", mock.Anything, want).Return(&entities.SearchResponse{
		Query:      "paracetamol",
		TotalCount: 0,
		Results:    []entities.SearchResultItem{},
		Facets:     map[entities.EntityKind]int{},
		Pagination: entities.Pagination{Limit: 10, Offset: 20},
	}, nil)

	rec, body := doSearch(t, handler,
		"q=paracetamol&lang=FR&types=amp,ampp&limit=10&offset=20&company=C01&atc=n02be01&form=tab,cap&reimbursable&delivery=public")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, body.Success)
	require.NotNil(t, body.Data)
	assert.Equal(t, 10, body.Data.Pagination.Limit)
	svc.AssertExpectations(t)
}

func TestSearchHandler_ClampsLimit(t *testing.T) {
	svc := new(MockSearchService)
	handler := handlers.NewSearchHandler(svc, 50)

	svc.On("Search", mock.Anything, mock.MatchedBy(func(q entities.SearchQuery) bool {
		return q.Limit == 50
	})).Return(&entities.SearchResponse{}, nil)

	rec, _ := doSearch(t, handler, "q=paracetamol&limit=500")
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSearchHandler_InvalidParams(t *testing.T) {
	cases := map[string]string{
		"unknown type":      "q=para&types=vtm,pill",
		"bad limit":         "q=para&limit=ten",
		"negative offset":   "q=para&offset=-1",
		"bad price":         "q=para&price_min=cheap",
		"bad boolean":       "q=para&reimbursable=maybe",
		"bad delivery":      "q=para&delivery=mail",
		"bad medicine type": "q=para&medicine_type=magic",
	}

	for name, rawQuery := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(MockSearchService)
			handler := handlers.NewSearchHandler(svc, 100)

			rec, body := doSearch(t, handler, rawQuery)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, "INVALID_PARAMS", body.Error.Code)
			assert.False(t, body.Error.Guidance)
			svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		})
	}
}

func TestSearchHandler_MapsServiceErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		code     string
		guidance bool
	}{
		{"too short", apperrors.NewQueryTooShortError(3), http.StatusBadRequest, "QUERY_TOO_SHORT", true},
		{"invalid", apperrors.NewInvalidParamsError("unsupported language \"xx\""), http.StatusBadRequest, "INVALID_PARAMS", false},
		{"server", apperrors.NewServerError("search lookup failed", errors.New("connection refused")), http.StatusInternalServerError, "SERVER_ERROR", false},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "SERVER_ERROR", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockSearchService)
			svc.On("Search", mock.Anything, mock.Anything).Return(nil, tc.err)
			handler := handlers.NewSearchHandler(svc, 100)

			rec, body := doSearch(t, handler, "q=pa")

			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.code, body.Error.Code)
			assert.Equal(t, tc.guidance, body.Error.Guidance)
			assert.NotContains(t, body.Error.Message, "connection refused")
		})
	}
}

func TestParseSearchQuery_Filters(t *testing.T) {
	values := url.Values{
		"vtm":                    {"1001"},
		"vmp_group":              {"G1"},
		"substance":              {"S1"},
		"route":                  {"or", "iv"},
		"reimbursement_category": {"a, b"},
		"price_min":              {"1.5"},
		"price_max":              {"20"},
		"black_triangle":         {"true"},
		"medicine_type":          {"herbal"},
	}

	q, err := handlers.ParseSearchQuery(values, 0)
	require.NoError(t, err)

	assert.Equal(t, "1001", q.Relations.SubstanceRootCode)
	assert.Equal(t, "G1", q.Relations.TherapeuticGroupCode)
	assert.Equal(t, "S1", q.Relations.RawSubstanceCode)
	assert.Equal(t, []string{"OR", "IV"}, q.Attributes.RouteCodes)
	assert.Equal(t, []string{"A", "B"}, q.Attributes.ReimbursementCategories)
	require.NotNil(t, q.Attributes.PriceMin)
	assert.Equal(t, 1.5, *q.Attributes.PriceMin)
	require.NotNil(t, q.Attributes.PriceMax)
	assert.Equal(t, 20.0, *q.Attributes.PriceMax)
	assert.True(t, q.Attributes.BlackTriangleOnly)
	assert.False(t, q.Attributes.ReimbursableOnly)
	assert.Equal(t, entities.MedicineHerbal, q.Attributes.MedicineType)
	assert.True(t, q.HasFilters())
}

func TestSearchHandler_WithEngine(t *testing.T) {
	index, err := snapshot.Load("../../adapters/snapshot/testdata/sample.json")
	require.NoError(t, err)
	engine := services.NewSearchEngine(index, services.DefaultSearchEngineConfig())
	handler := handlers.NewSearchHandler(engine, 100)

	rec, body := doSearch(t, handler, "q=paracetamol")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, body.Data)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Data.Results)

	sum := 0
	for _, n := range body.Data.Facets {
		sum += n
	}
	assert.Equal(t, body.Data.TotalCount, sum)

	rec, body = doSearch(t, handler, "q=pa")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "QUERY_TOO_SHORT", body.Error.Code)
	assert.True(t, body.Error.Guidance)
}
