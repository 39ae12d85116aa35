package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

type CreateCardInput struct {
	JobInfo         model.JobInfo
	LayoutDirection model.LayoutDirection
	HomepageTitle   string
}

type SaveCanvasInput struct {
	CanvasData      model.CanvasData
	CardImageData   model.CardImageData
	LayoutDirection model.LayoutDirection
}

// CardService manages cards, their paired canvases and the homepages built
// from them. Every owner operation answers NotFound for a card the caller
// does not own.
type CardService struct {
	cards     repository.CardRepository
	canvases  repository.CanvasRepository
	bookmarks repository.BookmarkRepository
	users     repository.UserRepository
	logger    *slog.Logger
}

func NewCardService(
	cards repository.CardRepository,
	canvases repository.CanvasRepository,
	bookmarks repository.BookmarkRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CardService {
	return &CardService{
		cards:     cards,
		canvases:  canvases,
		bookmarks: bookmarks,
		users:     users,
		logger:    logger,
	}
}

// CreateCard stores an unpublished card and its blank canvas. If the canvas
// cannot be stored the card is deleted again.
func (s *CardService) CreateCard(ctx context.Context, ownerID string, in CreateCardInput) (*model.Card, error) {
	layout := in.LayoutDirection
	if layout == "" {
		layout = model.LayoutHorizontal
	}
	card := &model.Card{
		OwnerID:         ownerID,
		JobInfo:         in.JobInfo,
		HomepageTitle:   strings.TrimSpace(in.HomepageTitle),
		HomepageLinks:   []model.HomepageLink{},
		LayoutDirection: layout,
	}
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}

	data := model.DefaultCanvasData()
	data.Position = string(layout)
	if err := s.canvases.Create(ctx, &model.Canvas{CardID: card.ID, Data: data}); err != nil {
		if delErr := s.cards.Delete(ctx, card.ID); delErr != nil {
			s.logger.Error("failed to roll back card without canvas",
				slog.String("cardID", card.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("creating canvas for card %s: %w", card.ID, err)
	}

	s.logger.Info("card created", slog.String("userID", ownerID), slog.String("cardID", card.ID))
	return card, nil
}

func (s *CardService) ListOwnCards(ctx context.Context, ownerID string) ([]model.Card, error) {
	cards, err := s.cards.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing cards of user %s: %w", ownerID, err)
	}
	if cards == nil {
		cards = []model.Card{}
	}
	return cards, nil
}

func (s *CardService) GetOwnCard(ctx context.Context, ownerID, cardID string) (*model.Card, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerID != ownerID {
		return nil, apperror.NotFound("card", cardID)
	}
	return card, nil
}

// DeleteCard removes the card, its canvas and every bookmark pointing at it.
func (s *CardService) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	if _, err := s.GetOwnCard(ctx, ownerID, cardID); err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, cardID); err != nil {
		return fmt.Errorf("deleting card %s: %w", cardID, err)
	}
	if err := s.canvases.Delete(ctx, cardID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("deleting canvas of card %s: %w", cardID, err)
	}
	removed, err := s.bookmarks.DeleteByCard(ctx, cardID)
	if err != nil {
		return fmt.Errorf("deleting bookmarks of card %s: %w", cardID, err)
	}

	s.logger.Info("card deleted",
		slog.String("userID", ownerID),
		slog.String("cardID", cardID),
		slog.Int64("bookmarksRemoved", removed),
	)
	return nil
}

func (s *CardService) Publish(ctx context.Context, ownerID, cardID string) (*model.Card, error) {
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		c.IsPublished = true
		return c, nil
	})
}

// EditJobInfo replaces all six fields, contents and visibility.
func (s *CardService) EditJobInfo(ctx context.Context, ownerID, cardID string, info model.JobInfo) (*model.Card, error) {
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		c.JobInfo = info
		return c, nil
	})
}

func (s *CardService) GetCanvas(ctx context.Context, ownerID, cardID string) (*model.Canvas, error) {
	if _, err := s.GetOwnCard(ctx, ownerID, cardID); err != nil {
		return nil, err
	}
	return s.canvases.Get(ctx, cardID)
}

// SaveCanvas stores the editor payload verbatim and copies the rendered
// images and layout onto the card.
func (s *CardService) SaveCanvas(ctx context.Context, ownerID, cardID string, in SaveCanvasInput) (*model.Canvas, error) {
	if _, err := s.GetOwnCard(ctx, ownerID, cardID); err != nil {
		return nil, err
	}
	canvas := &model.Canvas{CardID: cardID, Data: in.CanvasData}
	if err := s.canvases.Save(ctx, canvas); err != nil {
		return nil, fmt.Errorf("saving canvas of card %s: %w", cardID, err)
	}
	_, err := s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		c.CardImageData = in.CardImageData
		if in.LayoutDirection != "" {
			c.LayoutDirection = in.LayoutDirection
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return canvas, nil
}

// GetHomepageView renders a published card for viewerID, which is empty
// for guests. Unpublished cards are NotFound for everyone, the owner
// included.
func (s *CardService) GetHomepageView(ctx context.Context, viewerID, cardID string) (*model.HomepageView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !card.IsPublished {
		return nil, apperror.NotFound("homepage", cardID)
	}

	var bm *model.Bookmark
	if viewerID != "" && viewerID != card.OwnerID {
		bm, err = s.bookmarks.Get(ctx, bookmarkKey(viewerID, cardID))
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("looking up bookmark: %w", err)
		}
	}

	role := model.ResolveRole(viewerID, *card, bm != nil)
	vis := role.Visibility()
	view := &model.HomepageView{
		Role:            role,
		CardID:          card.ID,
		JobInfo:         card.JobInfo.Visible(vis.PrivateFields),
		HomepageTitle:   card.HomepageTitle,
		HomepageLinks:   card.HomepageLinks,
		LayoutDirection: card.LayoutDirection,
		CardImageData:   card.CardImageData,
		Avatar:          s.avatarOf(ctx, card.OwnerID),
	}
	if vis.Bookmark {
		view.Bookmark = bm
	}
	if view.HomepageLinks == nil {
		view.HomepageLinks = []model.HomepageLink{}
	}
	return view, nil
}

func (s *CardService) avatarOf(ctx context.Context, userID string) string {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("looking up card owner", slog.String("userID", userID), slog.String("error", err.Error()))
		}
		return ""
	}
	return u.AvatarURL
}

func (s *CardService) RenameHomepageTitle(ctx context.Context, ownerID, cardID, title string) (*model.Card, error) {
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		c.HomepageTitle = strings.TrimSpace(title)
		return c, nil
	})
}

// AddLink appends link with a fresh id.
func (s *CardService) AddLink(ctx context.Context, ownerID, cardID string, link model.HomepageLink) (*model.Card, error) {
	link.ID = xid.New().String()
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		return c.WithLink(link), nil
	})
}

func (s *CardService) EditLink(ctx context.Context, ownerID, cardID string, link model.HomepageLink) (*model.Card, error) {
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		return c.WithEditedLink(link)
	})
}

func (s *CardService) DeleteLink(ctx context.Context, ownerID, cardID, linkID string) (*model.Card, error) {
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		return c.WithoutLink(linkID)
	})
}

// ReorderLink swaps linkID with the link at newIndex.
func (s *CardService) ReorderLink(ctx context.Context, ownerID, cardID, linkID string, newIndex int) (*model.Card, error) {
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		return c.WithSwappedLink(linkID, newIndex)
	})
}

func (s *CardService) ToggleFieldVisibility(ctx context.Context, ownerID, cardID, fieldName string) (*model.Card, error) {
	return s.update(ctx, ownerID, cardID, func(c model.Card) (model.Card, error) {
		return c.WithToggledField(fieldName)
	})
}

// update loads an owned card, applies change to a copy and replaces the
// stored card with the result.
func (s *CardService) update(ctx context.Context, ownerID, cardID string, change func(model.Card) (model.Card, error)) (*model.Card, error) {
	card, err := s.GetOwnCard(ctx, ownerID, cardID)
	if err != nil {
		return nil, err
	}
	next, err := change(*card)
	if err != nil {
		return nil, err
	}
	if err := s.cards.Update(ctx, &next); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.OperationFailed("card was deleted while it was being updated")
		}
		return nil, fmt.Errorf("updating card %s: %w", cardID, err)
	}
	return &next, nil
}

// CardWall pages through published cards, newest first.
func (s *CardService) CardWall(ctx context.Context, filter repository.CardWallFilter, page model.PageRequest) (model.Page[model.CardSummary], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.CardSummary]{}, err
	}
	filter.City = strings.TrimSpace(filter.City)
	filter.Domain = strings.TrimSpace(filter.Domain)
	filter.Name = strings.TrimSpace(filter.Name)

	cards, total, err := s.cards.ListPublished(ctx, filter, repository.ListOptionsFor(page))
	if err != nil {
		return model.Page[model.CardSummary]{}, fmt.Errorf("listing card wall: %w", err)
	}

	avatars := make(map[string]string)
	summaries := make([]model.CardSummary, 0, len(cards))
	for _, c := range cards {
		avatar, ok := avatars[c.OwnerID]
		if !ok {
			avatar = s.avatarOf(ctx, c.OwnerID)
			avatars[c.OwnerID] = avatar
		}
		summaries = append(summaries, c.Summarize(avatar))
	}
	return model.NewPage(page, total, summaries), nil
}
