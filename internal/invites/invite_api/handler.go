package invite_api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-invites/internal/card"
	"ms-invites/internal/invites"
	"ms-invites/internal/logger"
	"ms-invites/internal/utils"
)

// Handler serves contacts, templates, events, invites and their cards
type Handler struct {
	Service  *invites.InviteService
	Renderer *card.Renderer
	Logger   *logger.Logger
}

func NewHandler(service *invites.InviteService, renderer *card.Renderer, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{Service: service, Renderer: renderer, Logger: log}
}

// RegisterRoutes registers the invite routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/contacts", func(r chi.Router) {
		r.Post("/", h.CreateContact)
		r.Post("/import", h.ImportContacts)
		r.Get("/", h.ListContacts)
		r.Get("/{contactId}", h.GetContact)
		r.Put("/{contactId}", h.UpdateContact)
		r.Delete("/{contactId}", h.DeleteContact)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Post("/", h.CreateTemplate)
		r.Get("/", h.ListTemplates)
		r.Get("/{templateId}", h.GetTemplate)
		r.Get("/{templateId}/image", h.GetTemplateImage)
		r.Delete("/{templateId}", h.DeleteTemplate)
	})

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{eventId}", h.GetEvent)
		r.Put("/{eventId}", h.UpdateEvent)
		r.Delete("/{eventId}", h.DeleteEvent)
		r.Get("/{eventId}/image", h.GetEventImage)
		r.Get("/{eventId}/invites", h.ListInvites)
		r.Post("/{eventId}/invites", h.AddInvites)
		r.Get("/{eventId}/cards.zip", h.ExportCardsZip)
		r.Get("/{eventId}/cards.pdf", h.ExportCardsPDF)
	})

	r.Route("/invites", func(r chi.Router) {
		r.Get("/{inviteId}", h.GetInvite)
		r.Delete("/{inviteId}", h.DeleteInvite)
		r.Get("/{inviteId}/qr.png", h.GetInviteQR)
		r.Get("/{inviteId}/card.png", h.GetInviteCard)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := utils.WriteError(w, message, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %s: %v", r.Method, r.URL.Path, message, err))
	}
}

// Contacts

func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var in invites.ContactInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	contact, err := h.Service.CreateContact(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to create contact", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Contact created", contact)
}

func (h *Handler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var in []invites.ContactInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	contacts, err := h.Service.ImportContacts(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to import contacts", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, fmt.Sprintf("%d contacts imported", len(contacts)), contacts)
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Service.ListContacts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, "Failed to list contacts", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Contacts retrieved", contacts)
}

func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := h.Service.GetContact(r.Context(), chi.URLParam(r, "contactId"))
	if err != nil {
		h.fail(w, r, "Failed to get contact", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Contact retrieved", contact)
}

func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var in invites.ContactInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	contact, err := h.Service.UpdateContact(r.Context(), chi.URLParam(r, "contactId"), in)
	if err != nil {
		h.fail(w, r, "Failed to update contact", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Contact updated", contact)
}

func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteContact(r.Context(), chi.URLParam(r, "contactId")); err != nil {
		h.fail(w, r, "Failed to delete contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Templates

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in invites.TemplateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	template, err := h.Service.CreateTemplate(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to create template", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Template created", template)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Service.ListTemplates(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list templates", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Templates retrieved", templates)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.Service.GetTemplate(r.Context(), chi.URLParam(r, "templateId"))
	if err != nil {
		h.fail(w, r, "Failed to get template", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Template retrieved", template)
}

func (h *Handler) GetTemplateImage(w http.ResponseWriter, r *http.Request) {
	template, err := h.Service.GetTemplate(r.Context(), chi.URLParam(r, "templateId"))
	if err != nil {
		h.fail(w, r, "Failed to get template", err)
		return
	}
	writeImage(w, r, template.ImageData)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteTemplate(r.Context(), chi.URLParam(r, "templateId")); err != nil {
		h.fail(w, r, "Failed to delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in invites.EventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	event, err := h.Service.CreateEvent(r.Context(), in)
	if err != nil {
		h.fail(w, r, "Failed to create event", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Event created", event)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.ListEvents(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list events", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Events retrieved", events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, r, "Failed to get event", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event retrieved", event)
}

func (h *Handler) GetEventImage(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, r, "Failed to get event", err)
		return
	}
	background, _ := card.Background(event)
	writeImage(w, r, background)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in invites.EventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	event, err := h.Service.UpdateEvent(r.Context(), chi.URLParam(r, "eventId"), in)
	if err != nil {
		h.fail(w, r, "Failed to update event", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event updated", event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteEvent(r.Context(), chi.URLParam(r, "eventId")); err != nil {
		h.fail(w, r, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invites

// AddInvitesRequest selects the creation mode: "contacts" uses ContactIDs, "blank" uses Quantity.
type AddInvitesRequest struct {
	Mode        string   `json:"mode"`
	ContactIDs  []string `json:"contact_ids,omitempty"`
	Quantity    int      `json:"quantity,omitempty"`
	MaxCheckIns *int     `json:"max_check_ins,omitempty"`
}

func (h *Handler) AddInvites(w http.ResponseWriter, r *http.Request) {
	var req AddInvitesRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	eventID := chi.URLParam(r, "eventId")

	var (
		created interface{}
		count   int
		err     error
	)
	switch req.Mode {
	case "contacts":
		list, e := h.Service.AddContactInvites(r.Context(), eventID, req.ContactIDs, req.MaxCheckIns)
		created, count, err = list, len(list), e
	case "blank":
		list, e := h.Service.AddBlankInvites(r.Context(), eventID, req.Quantity, req.MaxCheckIns)
		created, count, err = list, len(list), e
	default:
		err = fmt.Errorf("%w: mode must be \"contacts\" or \"blank\"", invites.ErrValidation)
	}
	if err != nil {
		h.fail(w, r, "Failed to create invites", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, fmt.Sprintf("%d invites created", count), created)
}

func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListInvites(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, r, "Failed to list invites", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Invites retrieved", list)
}

func (h *Handler) GetInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := h.Service.GetInvite(r.Context(), chi.URLParam(r, "inviteId"))
	if err != nil {
		h.fail(w, r, "Failed to get invite", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Invite retrieved", invite)
}

func (h *Handler) DeleteInvite(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteInvite(r.Context(), chi.URLParam(r, "inviteId")); err != nil {
		h.fail(w, r, "Failed to delete invite", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cards

func (h *Handler) GetInviteQR(w http.ResponseWriter, r *http.Request) {
	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 4096 {
			h.fail(w, r, "Invalid size", fmt.Errorf("%w: size must be between 64 and 4096", invites.ErrValidation))
			return
		}
		size = n
	}
	data, err := h.Renderer.InviteQR(r.Context(), chi.URLParam(r, "inviteId"), size)
	if err != nil {
		h.fail(w, r, "Failed to render QR code", err)
		return
	}
	writePNG(w, data, "")
}

func (h *Handler) GetInviteCard(w http.ResponseWriter, r *http.Request) {
	c, err := h.Renderer.InviteCard(r.Context(), chi.URLParam(r, "inviteId"))
	if err != nil {
		h.fail(w, r, "Failed to render card", err)
		return
	}
	writePNG(w, c.Data, c.Name)
}

func inviteIDsFromQuery(r *http.Request) []string {
	var ids []string
	for _, raw := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// ExportCardsZip renders every card before the first byte is written, so a failed export
// answers with an error instead of a truncated archive.
func (h *Handler) ExportCardsZip(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	event, cards, err := h.Renderer.EventCards(r.Context(), chi.URLParam(r, "eventId"), inviteIDsFromQuery(r))
	if err != nil {
		h.fail(w, r, "Failed to export cards", err)
		return
	}

	var buf bytes.Buffer
	if err := card.WriteZip(r.Context(), &buf, cards); err != nil {
		h.fail(w, r, "Failed to export cards", err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(event.Title, "zip"))
	w.Write(buf.Bytes())
	h.Logger.LogCard("export_zip", event.ID, fmt.Sprintf("%d cards in %s", len(cards), time.Since(start)))
}

func (h *Handler) ExportCardsPDF(w http.ResponseWriter, r *http.Request) {
	event, cards, err := h.Renderer.EventCards(r.Context(), chi.URLParam(r, "eventId"), inviteIDsFromQuery(r))
	if err != nil {
		h.fail(w, r, "Failed to export cards", err)
		return
	}

	var buf bytes.Buffer
	if err := card.WritePDF(r.Context(), &buf, cards); err != nil {
		h.fail(w, r, "Failed to export cards", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment(event.Title, "pdf"))
	w.Write(buf.Bytes())
	h.Logger.LogCard("export_pdf", event.ID, fmt.Sprintf("%d cards", len(cards)))
}

func attachment(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '/' || r == '\\' || r < ' ' {
			return '-'
		}
		return r
	}, title)
	if name == "" {
		name = "invites"
	}
	return fmt.Sprintf("attachment; filename=\"%s.%s\"", name, ext)
}

func writePNG(w http.ResponseWriter, data []byte, filename string) {
	w.Header().Set("Content-Type", "image/png")
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", filename))
	}
	w.Write(data)
}

func writeImage(w http.ResponseWriter, r *http.Request, data []byte) {
	if len(data) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}
