package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appservices "lattice-backend/internal/application/services"
	engineErrors "lattice-backend/internal/errors"
)

// SearchHandler serves the hybrid-search endpoint.
type SearchHandler struct {
	search   *appservices.SearchService
	validate *validator.Validate
	errors   *engineErrors.ErrorHandler
	logger   *zap.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(search *appservices.SearchService, errors *engineErrors.ErrorHandler, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		search:   search,
		validate: validator.New(),
		errors:   errors,
		logger:   logger,
	}
}

// Search handles POST /api/v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req appservices.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, engineErrors.Validation("BODY_INVALID", "request body must be valid JSON").WithCause(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, engineErrors.Validation("REQUEST_INVALID", err.Error()).WithCause(err))
		return
	}

	resp, err := h.search.Search(r.Context(), req)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}
