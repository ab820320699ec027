package invites

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-invites/internal/logger"
	"ms-invites/internal/models"
)

// ErrValidation wraps every input error so handlers can answer 400.
var ErrValidation = errors.New("validation failed")

const (
	MaxBlankInvites = 100
	MaxCheckInLimit = 100
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type InviteDBLayer interface {
	CreateContact(ctx context.Context, contact *models.Contact) error
	CreateContacts(ctx context.Context, contacts []*models.Contact) error
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	GetContactsByIDs(ctx context.Context, ids []string) ([]models.Contact, error)
	ListContacts(ctx context.Context, search string) ([]models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	DeleteContact(ctx context.Context, id string) error

	CreateTemplate(ctx context.Context, template *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, id string) error

	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id string) error

	CreateInvites(ctx context.Context, invites []*models.Invite) error
	GetInvite(ctx context.Context, id string) (*models.Invite, error)
	ListInvitesByEvent(ctx context.Context, eventID string) ([]*models.Invite, error)
	CountInvitesByEvent(ctx context.Context, eventID string) (int, error)
	DeleteInvite(ctx context.Context, id string) error
}

type InviteService struct {
	DB     InviteDBLayer
	Logger *logger.Logger
	Now    func() time.Time
	// QR edge for new events that don't set a placement
	DefaultQRSize float64
}

func NewInviteService(db InviteDBLayer, log *logger.Logger) *InviteService {
	if log == nil {
		log = logger.Discard()
	}
	return &InviteService{DB: db, Logger: log, Now: time.Now, DefaultQRSize: models.DefaultQRSize}
}

func (s *InviteService) now() time.Time {
	return s.Now().UTC()
}

// Contacts

type ContactInput struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

func (in ContactInput) normalize() (ContactInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, invalid("contact name is required")
	}
	in.Phone = trimOptional(in.Phone)
	in.Email = trimOptional(in.Email)
	if in.Email != nil && !strings.Contains(*in.Email, "@") {
		return in, invalid("email %q is not an address", *in.Email)
	}
	return in, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *InviteService) CreateContact(ctx context.Context, in ContactInput) (*models.Contact, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	contact := &models.Contact{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		Name:      in.Name,
		Phone:     in.Phone,
		Email:     in.Email,
	}
	if err := s.DB.CreateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	s.Logger.LogDatabase("insert", "contacts", contact.ID)
	return contact, nil
}

// ImportContacts creates all contacts in one transaction. One invalid entry rejects the batch.
func (s *InviteService) ImportContacts(ctx context.Context, inputs []ContactInput) ([]*models.Contact, error) {
	if len(inputs) == 0 {
		return nil, invalid("no contacts to import")
	}
	now := s.now()
	contacts := make([]*models.Contact, 0, len(inputs))
	for i, in := range inputs {
		in, err := in.normalize()
		if err != nil {
			return nil, fmt.Errorf("contact %d: %w", i+1, err)
		}
		contacts = append(contacts, &models.Contact{
			ID:        uuid.NewString(),
			CreatedAt: now,
			Name:      in.Name,
			Phone:     in.Phone,
			Email:     in.Email,
		})
	}
	if err := s.DB.CreateContacts(ctx, contacts); err != nil {
		return nil, fmt.Errorf("failed to import contacts: %w", err)
	}
	s.Logger.LogDatabase("insert", "contacts", fmt.Sprintf("imported %d contacts", len(contacts)))
	return contacts, nil
}

func (s *InviteService) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	contact, err := s.DB.GetContact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", id, err)
	}
	return contact, nil
}

func (s *InviteService) ListContacts(ctx context.Context, search string) ([]models.Contact, error) {
	return s.DB.ListContacts(ctx, search)
}

func (s *InviteService) UpdateContact(ctx context.Context, id string, in ContactInput) (*models.Contact, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	contact, err := s.DB.GetContact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", id, err)
	}
	contact.Name = in.Name
	contact.Phone = in.Phone
	contact.Email = in.Email
	if err := s.DB.UpdateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return contact, nil
}

// DeleteContact also removes the contact's invites and their check-ins.
func (s *InviteService) DeleteContact(ctx context.Context, id string) error {
	if err := s.DB.DeleteContact(ctx, id); err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	s.Logger.LogDatabase("delete", "contacts", id)
	return nil
}

// Templates

type TemplateInput struct {
	Name      string           `json:"name"`
	ImageData []byte           `json:"image_data"`
	Placement models.Placement `json:"placement"`
}

func (s *InviteService) CreateTemplate(ctx context.Context, in TemplateInput) (*models.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("template name is required")
	}
	if len(in.ImageData) == 0 {
		return nil, invalid("template image is required")
	}
	if err := in.Placement.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	now := s.now()
	template := &models.Template{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Name:        name,
		ImageData:   in.ImageData,
		QRPositionX: in.Placement.X,
		QRPositionY: in.Placement.Y,
		QRSize:      in.Placement.Size,
	}
	if err := s.DB.CreateTemplate(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return template, nil
}

func (s *InviteService) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	template, err := s.DB.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	return template, nil
}

func (s *InviteService) ListTemplates(ctx context.Context) ([]models.Template, error) {
	return s.DB.ListTemplates(ctx)
}

// DeleteTemplate detaches the template from its events; the events are kept.
func (s *InviteService) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.DB.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}
	return nil
}

// Events

type EventInput struct {
	Title      string            `json:"title"`
	Subtitle   string            `json:"subtitle"`
	Date       time.Time         `json:"date"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Address    *string           `json:"address,omitempty"`
	Latitude   *float64          `json:"latitude,omitempty"`
	Longitude  *float64          `json:"longitude,omitempty"`
	ImageData  []byte            `json:"image_data,omitempty"`
	Placement  *models.Placement `json:"placement,omitempty"`
	TemplateID *string           `json:"template_id,omitempty"`
}

func (s *InviteService) validateEvent(ctx context.Context, in *EventInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Subtitle = strings.TrimSpace(in.Subtitle)
	in.Address = trimOptional(in.Address)
	in.TemplateID = trimOptional(in.TemplateID)

	if in.Title == "" {
		return invalid("event title is required")
	}
	if in.Date.IsZero() {
		return invalid("event date is required")
	}
	if in.ExpiresAt != nil && in.ExpiresAt.Before(in.Date) {
		return invalid("expiration date is before the event date")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return invalid("latitude and longitude must be set together")
	}
	if in.Latitude != nil && (math.Abs(*in.Latitude) > 90 || math.Abs(*in.Longitude) > 180) {
		return invalid("coordinates out of range")
	}
	if in.Placement != nil {
		if err := in.Placement.Validate(); err != nil {
			return invalid("%v", err)
		}
	}
	if in.TemplateID != nil {
		if _, err := s.DB.GetTemplate(ctx, *in.TemplateID); err != nil {
			return invalid("template %s: %v", *in.TemplateID, err)
		}
	}
	return nil
}

func applyEvent(event *models.Event, in EventInput) {
	event.Title = in.Title
	event.Subtitle = in.Subtitle
	event.Date = in.Date.UTC()
	event.ExpiresAt = in.ExpiresAt
	event.Address = in.Address
	event.Latitude = in.Latitude
	event.Longitude = in.Longitude
	event.TemplateID = in.TemplateID
	event.Template = nil
	if in.ImageData != nil {
		event.ImageData = in.ImageData
	}
	if in.Placement != nil {
		event.QRPositionX = in.Placement.X
		event.QRPositionY = in.Placement.Y
		event.QRSize = in.Placement.Size
	}
}

func (s *InviteService) CreateEvent(ctx context.Context, in EventInput) (*models.Event, error) {
	if err := s.validateEvent(ctx, &in); err != nil {
		return nil, err
	}
	now := s.now()
	def := models.DefaultPlacement()
	if s.DefaultQRSize > 0 && s.DefaultQRSize <= 1 {
		def.Size = s.DefaultQRSize
	}
	event := &models.Event{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		QRPositionX: def.X,
		QRPositionY: def.Y,
		QRSize:      def.Size,
	}
	applyEvent(event, in)
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.Logger.LogDatabase("insert", "events", event.ID)
	return event, nil
}

func (s *InviteService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}
	return event, nil
}

func (s *InviteService) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListEvents(ctx)
}

// UpdateEvent replaces the editable fields. A nil image keeps the stored one.
func (s *InviteService) UpdateEvent(ctx context.Context, id string, in EventInput) (*models.Event, error) {
	if err := s.validateEvent(ctx, &in); err != nil {
		return nil, err
	}
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}
	applyEvent(event, in)
	event.UpdatedAt = s.now()
	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return event, nil
}

// DeleteEvent also removes the event's invites and their check-ins.
func (s *InviteService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.DB.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	s.Logger.LogDatabase("delete", "events", id)
	return nil
}

// Invites

func validateMax(limit *int) error {
	if limit != nil && (*limit < 1 || *limit > MaxCheckInLimit) {
		return invalid("max check-ins must be between 1 and %d", MaxCheckInLimit)
	}
	return nil
}

// AddContactInvites creates one invite per contact not yet invited to the event. The contact's
// name is stored on the invite so it still has a label if the contact is renamed.
func (s *InviteService) AddContactInvites(ctx context.Context, eventID string, contactIDs []string, maxCheckIns *int) ([]*models.Invite, error) {
	if len(contactIDs) == 0 {
		return nil, invalid("select at least one contact")
	}
	if err := validateMax(maxCheckIns); err != nil {
		return nil, err
	}
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}

	existing, err := s.DB.ListInvitesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	invited := make(map[string]bool, len(existing))
	for _, invite := range existing {
		if invite.ContactID != nil {
			invited[*invite.ContactID] = true
		}
	}

	contacts, err := s.DB.GetContactsByIDs(ctx, contactIDs)
	if err != nil {
		return nil, err
	}
	if len(contacts) != len(dedupe(contactIDs)) {
		return nil, invalid("unknown contact in selection")
	}

	now := s.now()
	var created []*models.Invite
	for _, contact := range contacts {
		if invited[contact.ID] {
			continue
		}
		contactID, name := contact.ID, contact.Name
		created = append(created, &models.Invite{
			ID:          uuid.NewString(),
			CreatedAt:   now,
			EventID:     eventID,
			ContactID:   &contactID,
			ContactName: &name,
			MaxCheckIns: maxCheckIns,
		})
	}
	if err := s.DB.CreateInvites(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to create invites: %w", err)
	}
	s.Logger.LogDatabase("insert", "invites", fmt.Sprintf("%d contact invites for event %s", len(created), eventID))
	return created, nil
}

// AddBlankInvites creates quantity general admission invites numbered after the event's
// existing invites.
func (s *InviteService) AddBlankInvites(ctx context.Context, eventID string, quantity int, maxCheckIns *int) ([]*models.Invite, error) {
	if quantity < 1 || quantity > MaxBlankInvites {
		return nil, invalid("quantity must be between 1 and %d", MaxBlankInvites)
	}
	if err := validateMax(maxCheckIns); err != nil {
		return nil, err
	}
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	existing, err := s.DB.CountInvitesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	created := make([]*models.Invite, 0, quantity)
	for i := 1; i <= quantity; i++ {
		name := fmt.Sprintf("%s #%d", models.GeneralInviteLabel, existing+i)
		var limit *int
		if maxCheckIns != nil {
			v := *maxCheckIns
			limit = &v
		}
		// offset by i so listing keeps the numbering order
		created = append(created, &models.Invite{
			ID:          uuid.NewString(),
			CreatedAt:   now.Add(time.Duration(i) * time.Microsecond),
			EventID:     eventID,
			ContactName: &name,
			MaxCheckIns: limit,
		})
	}
	if err := s.DB.CreateInvites(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to create invites: %w", err)
	}
	s.Logger.LogDatabase("insert", "invites", fmt.Sprintf("%d blank invites for event %s", len(created), eventID))
	return created, nil
}

func (s *InviteService) GetInvite(ctx context.Context, id string) (*models.Invite, error) {
	invite, err := s.DB.GetInvite(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invite %s: %w", id, err)
	}
	return invite, nil
}

func (s *InviteService) ListInvites(ctx context.Context, eventID string) ([]*models.Invite, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	return s.DB.ListInvitesByEvent(ctx, eventID)
}

func (s *InviteService) DeleteInvite(ctx context.Context, id string) error {
	if err := s.DB.DeleteInvite(ctx, id); err != nil {
		return fmt.Errorf("failed to delete invite %s: %w", id, err)
	}
	s.Logger.LogDatabase("delete", "invites", id)
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
