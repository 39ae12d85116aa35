package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

// BookmarkService owns the per-user bookmark list (groups and tags) and the
// bookmarks filed into it.
//
// Group changes read the list, apply a copy-on-write method of
// model.BookmarkList and write the group sequence back. Two concurrent
// changes by the same user race and the last write wins.
type BookmarkService struct {
	lists     repository.BookmarkListRepository
	bookmarks repository.BookmarkRepository
	cards     repository.CardRepository
	logger    *slog.Logger
}

func NewBookmarkService(
	lists repository.BookmarkListRepository,
	bookmarks repository.BookmarkRepository,
	cards repository.CardRepository,
	logger *slog.Logger,
) *BookmarkService {
	return &BookmarkService{
		lists:     lists,
		bookmarks: bookmarks,
		cards:     cards,
		logger:    logger,
	}
}

// CreateDefaultList creates the list with its single default group. A
// second call for the same user fails with Conflict.
func (s *BookmarkService) CreateDefaultList(ctx context.Context, userID string) (*model.BookmarkList, error) {
	list := model.NewBookmarkList(userID, xid.New().String())
	if err := s.lists.Create(ctx, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *BookmarkService) ListGroups(ctx context.Context, userID string) ([]model.Group, error) {
	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return list.Groups, nil
}

func (s *BookmarkService) CreateGroup(ctx context.Context, userID, name string) ([]model.Group, error) {
	groups, err := s.updateGroups(ctx, userID, func(l model.BookmarkList) (model.BookmarkList, error) {
		return l.WithGroup(xid.New().String(), name)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("group created", slog.String("userID", userID), slog.String("name", name))
	return groups, nil
}

func (s *BookmarkService) RenameGroup(ctx context.Context, userID, groupID, name string) ([]model.Group, error) {
	return s.updateGroups(ctx, userID, func(l model.BookmarkList) (model.BookmarkList, error) {
		return l.WithRenamedGroup(groupID, name)
	})
}

// DeleteGroup moves the group's bookmarks to the default group, then drops
// the group. The default group itself cannot be deleted (Forbidden).
func (s *BookmarkService) DeleteGroup(ctx context.Context, userID, groupID string) ([]model.Group, error) {
	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := list.WithoutGroup(groupID)
	if err != nil {
		return nil, err
	}
	def, err := next.DefaultGroup()
	if err != nil {
		return nil, err
	}

	moved, err := s.bookmarks.ReassignGroup(ctx, userID, groupID, def.ID)
	if err != nil {
		return nil, fmt.Errorf("moving bookmarks out of group %s: %w", groupID, err)
	}
	if err := s.lists.SaveGroups(ctx, userID, next.Groups); err != nil {
		return nil, fmt.Errorf("saving groups of user %s: %w", userID, err)
	}

	s.logger.Info("group deleted",
		slog.String("userID", userID),
		slog.String("groupID", groupID),
		slog.Int64("moved", moved),
	)
	return next.Groups, nil
}

// ReorderGroup swaps groupID with the group at newIndex.
func (s *BookmarkService) ReorderGroup(ctx context.Context, userID, groupID string, newIndex int) ([]model.Group, error) {
	return s.updateGroups(ctx, userID, func(l model.BookmarkList) (model.BookmarkList, error) {
		return l.WithSwappedGroup(groupID, newIndex)
	})
}

func (s *BookmarkService) updateGroups(ctx context.Context, userID string, change func(model.BookmarkList) (model.BookmarkList, error)) ([]model.Group, error) {
	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := change(*list)
	if err != nil {
		return nil, err
	}
	if err := s.lists.SaveGroups(ctx, userID, next.Groups); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.OperationFailed("bookmark list was deleted while saving groups")
		}
		return nil, fmt.Errorf("saving groups of user %s: %w", userID, err)
	}
	return next.Groups, nil
}

// AddBookmark files cardID into the caller's default group.
func (s *BookmarkService) AddBookmark(ctx context.Context, userID, cardID string) (*model.Bookmark, error) {
	if _, err := s.cards.GetByID(ctx, cardID); err != nil {
		return nil, err
	}
	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	def, err := list.DefaultGroup()
	if err != nil {
		return nil, err
	}

	bm := &model.Bookmark{
		FollowerUserID:  userID,
		FollowedCardID:  cardID,
		FollowerGroupID: def.ID,
	}
	if err := s.bookmarks.Create(ctx, bm); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("bookmark", cardID)
		}
		return nil, fmt.Errorf("adding bookmark: %w", err)
	}

	s.logger.Info("bookmark added", slog.String("userID", userID), slog.String("cardID", cardID))
	return bm, nil
}

func (s *BookmarkService) RemoveBookmark(ctx context.Context, userID, cardID string) error {
	if err := s.bookmarks.Delete(ctx, bookmarkKey(userID, cardID)); err != nil {
		return err
	}
	s.logger.Info("bookmark removed", slog.String("userID", userID), slog.String("cardID", cardID))
	return nil
}

// Pin and Unpin are idempotent.
func (s *BookmarkService) Pin(ctx context.Context, userID, cardID string) error {
	return s.setPinned(ctx, userID, cardID, true)
}

func (s *BookmarkService) Unpin(ctx context.Context, userID, cardID string) error {
	return s.setPinned(ctx, userID, cardID, false)
}

func (s *BookmarkService) setPinned(ctx context.Context, userID, cardID string, pinned bool) error {
	if _, err := s.cards.GetByID(ctx, cardID); err != nil {
		return err
	}
	return s.bookmarks.SetPinned(ctx, bookmarkKey(userID, cardID), pinned)
}

// EditAnnotation applies the supplied parts of a. New tags are also merged
// into the list's tag set.
func (s *BookmarkService) EditAnnotation(ctx context.Context, userID, cardID string, a model.BookmarkAnnotation) (*model.Bookmark, error) {
	a.Tags = cleanTags(a.Tags)
	if a.IsEmpty() {
		return nil, apperror.ValidationFailed("body", "one of note, tags or followerGroupId is required")
	}
	if a.FollowerGroupID != "" {
		list, err := s.lists.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !list.HasGroup(a.FollowerGroupID) {
			return nil, apperror.NotFound("group", a.FollowerGroupID)
		}
	}

	bm, err := s.bookmarks.Annotate(ctx, bookmarkKey(userID, cardID), a)
	if err != nil {
		return nil, err
	}
	if len(a.Tags) > 0 {
		if err := s.lists.AddTags(ctx, userID, a.Tags); err != nil {
			return nil, fmt.Errorf("adding tags to list of user %s: %w", userID, err)
		}
	}
	return bm, nil
}

// cleanTags trims, drops blanks and dedupes, keeping first-seen order. An
// empty result is nil: "tags": [] leaves the bookmark's tags alone.
func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// ListGroupContents pages through one group. sort is one of
// repository.SortFields and defaults to creation time, newest first.
func (s *BookmarkService) ListGroupContents(ctx context.Context, userID, groupID string, page model.PageRequest, sort string, asc bool) (model.Page[model.BookmarkRecord], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.BookmarkRecord]{}, err
	}
	if sort == "" {
		sort = repository.SortCreatedAt
	}
	if !slices.Contains(repository.SortFields, sort) {
		return model.Page[model.BookmarkRecord]{}, apperror.ValidationFailed("sort",
			"sort must be one of "+strings.Join(repository.SortFields, ", "))
	}

	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return model.Page[model.BookmarkRecord]{}, err
	}
	if !list.HasGroup(groupID) {
		return model.Page[model.BookmarkRecord]{}, apperror.NotFound("group", groupID)
	}

	records, total, err := s.bookmarks.ListByGroup(ctx, userID, groupID, repository.GroupQuery{
		ListOptions: repository.ListOptionsFor(page),
		SortField:   sort,
		Ascending:   asc,
	})
	if err != nil {
		return model.Page[model.BookmarkRecord]{}, fmt.Errorf("listing group %s: %w", groupID, err)
	}
	return model.NewPage(page, total, records), nil
}

func (s *BookmarkService) ListByTag(ctx context.Context, userID, tag string, page model.PageRequest) (model.Page[model.BookmarkRecord], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.BookmarkRecord]{}, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return model.Page[model.BookmarkRecord]{}, apperror.ValidationFailed("tag", "tag is required")
	}
	records, total, err := s.bookmarks.ListByTag(ctx, userID, tag, repository.ListOptionsFor(page))
	if err != nil {
		return model.Page[model.BookmarkRecord]{}, fmt.Errorf("listing tag %q: %w", tag, err)
	}
	return model.NewPage(page, total, records), nil
}

func (s *BookmarkService) Search(ctx context.Context, userID, q string, page model.PageRequest) (model.Page[model.BookmarkRecord], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.BookmarkRecord]{}, err
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return model.Page[model.BookmarkRecord]{}, apperror.ValidationFailed("q", "search query is required")
	}
	records, total, err := s.bookmarks.Search(ctx, userID, q, repository.ListOptionsFor(page))
	if err != nil {
		return model.Page[model.BookmarkRecord]{}, fmt.Errorf("searching bookmarks: %w", err)
	}
	return model.NewPage(page, total, records), nil
}

// ListTags returns every tag the user ever used, including ones no
// bookmark carries any more.
func (s *BookmarkService) ListTags(ctx context.Context, userID string) ([]string, error) {
	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list.Tags == nil {
		return []string{}, nil
	}
	return list.Tags, nil
}

func bookmarkKey(userID, cardID string) model.BookmarkKey {
	return model.BookmarkKey{FollowerUserID: userID, FollowedCardID: cardID}
}
