package checkin_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ms-invites/internal/checkin"
	"ms-invites/internal/logger"
	"ms-invites/internal/sse"
	"ms-invites/internal/utils"
)

// Handler serves scanning and the live check-in feed
type Handler struct {
	Engine   *checkin.Engine
	Sessions *checkin.SessionManager
	Emitter  *sse.CheckInEventEmitter
	Logger   *logger.Logger
}

func NewHandler(engine *checkin.Engine, sessions *checkin.SessionManager, emitter *sse.CheckInEventEmitter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{Engine: engine, Sessions: sessions, Emitter: emitter, Logger: log}
}

// RegisterRoutes registers the check-in routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/checkins/resolve", h.Resolve)
	r.Get("/events/{eventId}/checkins/stream", h.StreamCheckIns)

	r.Route("/scan-sessions", func(r chi.Router) {
		r.Post("/", h.OpenSession)
		r.Get("/{sessionId}", h.GetSession)
		r.Post("/{sessionId}/scans", h.Scan)
		r.Post("/{sessionId}/ack", h.Acknowledge)
		r.Delete("/{sessionId}", h.CloseSession)
	})
}

// ScanRequest carries the raw text a scanner decoded
type ScanRequest struct {
	Text string `json:"text"`
}

// writeOutcome answers 200 with the outcome's kind. A check-in that could not be committed
// is answered with 503 and success false.
func writeOutcome(w http.ResponseWriter, out checkin.Outcome) {
	if out.Kind == checkin.Failed {
		resp := utils.ErrorResponse(string(out.Kind), out.Reason)
		resp.Data = out
		utils.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, string(out.Kind), out)
}

// Resolve decides a single scan without session state. Malformed and not found scans are
// answered with 200 and their kind.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "Invalid request body", err)
		return
	}
	writeOutcome(w, h.Engine.Resolve(r.Context(), req.Text))
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Open()
	h.Logger.Info("SCAN", fmt.Sprintf("Scan session %s opened", s.ID))
	utils.WriteSuccess(w, http.StatusCreated, "Scan session opened", s.View())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		utils.WriteError(w, "Failed to get scan session", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Scan session retrieved", s.View())
}

// Scan answers 409 while the previous outcome is still displayed.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "Invalid request body", err)
		return
	}
	s, err := h.Sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		utils.WriteError(w, "Failed to get scan session", err)
		return
	}
	out, err := s.HandleScan(r.Context(), req.Text)
	if err != nil {
		utils.WriteError(w, "Scan rejected", err)
		return
	}
	writeOutcome(w, out)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		utils.WriteError(w, "Failed to get scan session", err)
		return
	}
	if err := s.Acknowledge(); err != nil {
		utils.WriteError(w, "Nothing to acknowledge", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ready for next scan", s.View())
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if err := h.Sessions.Close(id); err != nil {
		utils.WriteError(w, "Failed to close scan session", err)
		return
	}
	h.Logger.Info("SCAN", fmt.Sprintf("Scan session %s closed", id))
	w.WriteHeader(http.StatusNoContent)
}

// StreamCheckIns streams recorded check-ins for an event as Server-Sent Events
func (h *Handler) StreamCheckIns(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid event id", err.Error()))
		return
	}
	// published events carry the canonical lower-case form
	eventID := id.String()
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// the feed outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	eventChan := h.Emitter.SubscribeToEvent(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventID\":\"%s\"}\n\n", eventID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to check-in feed for event: %s", eventID))

	for {
		select {
		case evt, ok := <-eventChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize check-in event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: checkin\ndata: %s\n\n", jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from check-in feed for: %s", eventID))
			return
		}
	}
}
