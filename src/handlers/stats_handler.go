package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/soldrip/backend/src/models"
	"github.com/username/soldrip/backend/src/security/validation"
	"github.com/username/soldrip/backend/src/services"
	"github.com/username/soldrip/backend/src/utils"
)

type StatsHandler struct {
	protocolService services.ProtocolService
}

func NewStatsHandler(service services.ProtocolService) *StatsHandler {
	return &StatsHandler{protocolService: service}
}

func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.protocolService.GetStats(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) HandleGetHolder(w http.ResponseWriter, r *http.Request) {
	account, err := validation.ValidateAccountKey(chi.URLParam(r, "account"), "account")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	view, err := h.protocolService.GetHolder(r.Context(), account)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if view.RecentDividends == nil {
		view.RecentDividends = []models.LedgerMovement{}
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *StatsHandler) HandleListDistributions(w http.ResponseWriter, r *http.Request) {
	limit, err := validation.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	jobs, err := h.protocolService.ListDistributions(r.Context(), limit)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []models.DistributionJob{}
	}
	utils.WriteJSON(w, http.StatusOK, jobs)
}

func (h *StatsHandler) HandleGetTaxDetails(w http.ResponseWriter, r *http.Request) {
	since, err := validation.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	details, err := h.protocolService.GetTaxDetails(r.Context(), since)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if details == nil {
		details = []models.TaxDetail{}
	}
	utils.WriteJSON(w, http.StatusOK, details)
}
