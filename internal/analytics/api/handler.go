package analytics_api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-invites/internal/analytics"
	"ms-invites/internal/logger"
	"ms-invites/internal/models"
	"ms-invites/internal/utils"
)

// EventLookup confirms an event exists before its numbers are reported
type EventLookup interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Events  EventLookup
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, events EventLookup, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Events: events, Logger: logger}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventId}/stats", h.GetEventStats)
	r.Get("/events/{eventId}/analytics", h.GetEventAnalytics)
}

func (h *Handler) GetEventStats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.Events.GetEvent(r.Context(), eventID); err != nil {
		utils.WriteError(w, "Failed to get event", err)
		return
	}
	stats, err := h.Service.GetEventStats(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("ANALYTICS", err.Error())
		utils.WriteError(w, "Failed to compute stats", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event stats retrieved", stats)
}

func (h *Handler) GetEventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.Events.GetEvent(r.Context(), eventID); err != nil {
		utils.WriteError(w, "Failed to get event", err)
		return
	}
	result, err := h.Service.GetEventAnalytics(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("ANALYTICS", err.Error())
		utils.WriteError(w, "Failed to compute analytics", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event analytics retrieved", result)
}
