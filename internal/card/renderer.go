package card

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"ms-invites/internal/logger"
	"ms-invites/internal/models"
)

// Source loads what a card needs. GetEvent must include image bytes and the template.
type Source interface {
	GetInvite(ctx context.Context, id string) (*models.Invite, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListInvitesByEvent(ctx context.Context, eventID string) ([]*models.Invite, error)
}

// Background picks the event's own image, then its template's, then none.
func Background(event *models.Event) ([]byte, models.Placement) {
	if event.HasImage() {
		return event.ImageData, event.Placement()
	}
	if event.Template != nil && len(event.Template.ImageData) > 0 {
		return event.Template.ImageData, event.Template.Placement()
	}
	return nil, models.DefaultPlacement()
}

// FileName is the export name of the card at index: the guest name with slashes
// replaced, then a 1-based position.
func FileName(displayName string, index int) string {
	return fmt.Sprintf("%s_%d.png", strings.ReplaceAll(displayName, "/", "-"), index+1)
}

// Card is one rendered invitation.
type Card struct {
	InviteID string
	Name     string
	Data     []byte
}

type Renderer struct {
	source      Source
	composer    *Composer
	concurrency int
	logger      *logger.Logger
}

func NewRenderer(source Source, composer *Composer, concurrency int, log *logger.Logger) *Renderer {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Renderer{source: source, composer: composer, concurrency: concurrency, logger: log}
}

// InviteCard renders a single invite's card with metadata.
func (r *Renderer) InviteCard(ctx context.Context, inviteID string) (*Card, error) {
	invite, err := r.source.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	event, err := r.source.GetEvent(ctx, invite.EventID)
	if err != nil {
		return nil, err
	}
	data, err := r.render(event, invite)
	if err != nil {
		r.logger.Error("CARD", fmt.Sprintf("Failed to render card for %s: %v", invite.ID, err))
		return nil, err
	}
	r.logger.LogCard("render", invite.ID, fmt.Sprintf("%d bytes", len(data)))
	return &Card{InviteID: invite.ID, Name: FileName(invite.DisplayName(), 0), Data: data}, nil
}

// InviteQR renders the bare QR code for an invite.
func (r *Renderer) InviteQR(ctx context.Context, inviteID string, size int) ([]byte, error) {
	invite, err := r.source.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = BareQRSize
	}
	return r.composer.qr.PNG(invite.QRToken(), size)
}

// EventCards renders cards for the event's invites in creation order, optionally limited to
// inviteIDs. Work runs on a bounded pool and stops at the first failure or when ctx ends.
func (r *Renderer) EventCards(ctx context.Context, eventID string, inviteIDs []string) (*models.Event, []Card, error) {
	event, err := r.source.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	invites, err := r.source.ListInvitesByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	invites = filterInvites(invites, inviteIDs)

	cards := make([]Card, len(invites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, invite := range invites {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := r.render(event, invite)
			if err != nil {
				return fmt.Errorf("invite %s: %w", invite.ID, err)
			}
			cards[i] = Card{InviteID: invite.ID, Name: FileName(invite.DisplayName(), i), Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error("CARD", fmt.Sprintf("Export of event %s stopped: %v", eventID, err))
		return nil, nil, err
	}
	r.logger.LogCard("export", eventID, fmt.Sprintf("%d cards rendered", len(cards)))
	return event, cards, nil
}

func (r *Renderer) render(event *models.Event, invite *models.Invite) ([]byte, error) {
	background, placement := Background(event)
	return r.composer.ComposeWithMetadata(background, invite.QRToken(), placement, Metadata{
		Title:       event.Title,
		Description: invite.DisplayName(),
		Author:      invite.DisplayName(),
	})
}

func filterInvites(invites []*models.Invite, ids []string) []*models.Invite {
	if len(ids) == 0 {
		return invites
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[strings.ToLower(id)] = true
	}
	out := invites[:0:0]
	for _, invite := range invites {
		if wanted[invite.ID] {
			out = append(out, invite)
		}
	}
	return out
}
