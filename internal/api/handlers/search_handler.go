package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/to-ny/medsearch-sub001/internal/application/services"
	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/observability"
	apperrors "github.com/to-ny/medsearch-sub001/pkg/errors"
)

// SearchHandler handles federated search HTTP requests
type SearchHandler struct {
	search   services.SearchService
	maxLimit int
}

// NewSearchHandler creates a new search handler. Requested limits above
// maxLimit are clamped; maxLimit <= 0 disables clamping.
func NewSearchHandler(search services.SearchService, maxLimit int) *SearchHandler {
	return &SearchHandler{
		search:   search,
		maxLimit: maxLimit,
	}
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code     apperrors.ErrorType `json:"code"`
	Message  string              `json:"message"`
	Guidance bool                `json:"guidance,omitempty"`
}

// Search handles GET /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := ParseSearchQuery(r.URL.Query(), h.maxLimit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.search.Search(r.Context(), query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: resp})
}

// ParseSearchQuery builds a SearchQuery from URL parameters. Malformed
// values produce an INVALID_PARAMS error; semantic checks such as the
// minimum query length are left to the engine.
func ParseSearchQuery(values url.Values, maxLimit int) (entities.SearchQuery, error) {
	q := entities.SearchQuery{
		Text: values.Get("q"),
		Lang: strings.ToLower(strings.TrimSpace(values.Get("lang"))),
	}

	types, err := entities.ParseEntityKinds(values.Get("types"))
	if err != nil {
		return q, apperrors.NewInvalidParamsError(err.Error())
	}
	q.Types = types

	if q.Limit, err = intParam(values, "limit"); err != nil {
		return q, err
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset, err = intParam(values, "offset"); err != nil {
		return q, err
	}

	q.Relations = entities.RelationshipFilters{
		SubstanceRootCode:    strings.TrimSpace(values.Get("vtm")),
		GenericProductCode:   strings.TrimSpace(values.Get("vmp")),
		BrandedProductCode:   strings.TrimSpace(values.Get("amp")),
		ClassificationCode:   strings.ToUpper(strings.TrimSpace(values.Get("atc"))),
		ManufacturerCode:     strings.TrimSpace(values.Get("company")),
		TherapeuticGroupCode: strings.TrimSpace(values.Get("vmp_group")),
		RawSubstanceCode:     strings.TrimSpace(values.Get("substance")),
	}

	attrs := entities.AttributeFilters{
		FormCodes:               csvParam(values, "form"),
		RouteCodes:              csvParam(values, "route"),
		ReimbursementCategories: csvParam(values, "reimbursement_category"),
	}
	if attrs.PriceMin, err = floatParam(values, "price_min"); err != nil {
		return q, err
	}
	if attrs.PriceMax, err = floatParam(values, "price_max"); err != nil {
		return q, err
	}
	if attrs.ReimbursableOnly, err = boolParam(values, "reimbursable"); err != nil {
		return q, err
	}
	if attrs.BlackTriangleOnly, err = boolParam(values, "black_triangle"); err != nil {
		return q, err
	}
	if attrs.DeliveryChannel, err = entities.ParseDeliveryChannel(values.Get("delivery")); err != nil {
		return q, apperrors.NewInvalidParamsError(err.Error())
	}
	if attrs.MedicineType, err = entities.ParseMedicineType(values.Get("medicine_type")); err != nil {
		return q, apperrors.NewInvalidParamsError(err.Error())
	}
	q.Attributes = attrs

	return q, nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewInvalidParamsError(fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}

func floatParam(values url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return nil, apperrors.NewInvalidParamsError(fmt.Sprintf("%s must be a non-negative number", name))
	}
	return &f, nil
}

// boolParam treats a bare flag (?reimbursable) as true
func boolParam(values url.Values, name string) (bool, error) {
	if _, ok := values[name]; !ok {
		return false, nil
	}
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewInvalidParamsError(fmt.Sprintf("%s must be a boolean", name))
	}
	return b, nil
}

func csvParam(values url.Values, name string) []string {
	var out []string
	for _, raw := range values[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, code apperrors.ErrorType, message string, guidance bool) {
	respondWithJSON(w, statusCode, envelope{
		Success: false,
		Error: &errorBody{
			Code:     code,
			Message:  message,
			Guidance: guidance,
		},
	})
}

func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.As(err); ok {
		switch appErr.Type {
		case apperrors.ErrorTypeInvalidParams:
			respondWithError(w, http.StatusBadRequest, appErr.Type, appErr.Message, false)
			return
		case apperrors.ErrorTypeQueryTooShort:
			respondWithError(w, http.StatusBadRequest, appErr.Type, appErr.Message, true)
			return
		}
	}

	observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("search failed")
	respondWithError(w, http.StatusInternalServerError, apperrors.ErrorTypeServer, "search is temporarily unavailable", false)
}
