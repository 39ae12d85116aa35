package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

type MessageService struct {
	messages  repository.MessageRepository
	cards     repository.CardRepository
	bookmarks repository.BookmarkRepository
	logger    *slog.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	cards repository.CardRepository,
	bookmarks repository.BookmarkRepository,
	logger *slog.Logger,
) *MessageService {
	return &MessageService{
		messages:  messages,
		cards:     cards,
		bookmarks: bookmarks,
		logger:    logger,
	}
}

// NotifyFollowers sends one message to every user who bookmarked cardID,
// except the owner. Delivery is best effort: messages inserted before a
// failure stay, and the count of delivered messages is returned.
func (s *MessageService) NotifyFollowers(ctx context.Context, ownerID, cardID, body string, category model.MessageCategory) (int, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return 0, apperror.ValidationFailed("messageBody", "messageBody is required")
	}
	if _, err := model.ParseMessageCategory(string(category)); err != nil {
		return 0, err
	}

	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return 0, err
	}
	if card.OwnerID != ownerID {
		return 0, apperror.NotFound("card", cardID)
	}

	followers, err := s.bookmarks.Followers(ctx, cardID)
	if err != nil {
		return 0, fmt.Errorf("listing followers of card %s: %w", cardID, err)
	}
	msgs := make([]model.Message, 0, len(followers))
	for _, f := range followers {
		if f == ownerID {
			continue
		}
		msgs = append(msgs, model.Message{
			SenderUserID:    ownerID,
			SenderCardID:    cardID,
			RecipientUserID: f,
			Category:        category,
			MessageBody:     body,
		})
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	sent, err := s.messages.CreateMany(ctx, msgs)
	if err != nil {
		s.logger.Error("notification fan-out stopped early",
			slog.String("cardID", cardID),
			slog.Int("sent", sent),
			slog.Int("total", len(msgs)),
			slog.String("error", err.Error()),
		)
		return sent, fmt.Errorf("notifying followers of card %s: %w", cardID, err)
	}

	s.logger.Info("followers notified", slog.String("cardID", cardID), slog.Int("sent", sent))
	return sent, nil
}

// ListInbox returns the caller's messages, newest first. An empty category
// lists both kinds.
func (s *MessageService) ListInbox(ctx context.Context, userID, category string) ([]model.InboxMessage, error) {
	var c model.MessageCategory
	if category != "" {
		var err error
		if c, err = model.ParseMessageCategory(category); err != nil {
			return nil, err
		}
	}
	inbox, err := s.messages.ListInbox(ctx, userID, c)
	if err != nil {
		return nil, fmt.Errorf("listing inbox: %w", err)
	}
	return inbox, nil
}

// MarkRead answers NotFound for messages addressed to someone else.
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID string) error {
	return s.messages.MarkRead(ctx, messageID, userID)
}

func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.messages.CountUnread(ctx, userID)
}
