// Package repository declares the storage contracts the services depend on.
// The sqlite and mongo sub-packages implement every interface here; each
// implementation translates driver errors into apperror kinds.
package repository

import (
	"context"

	"github.com/sakif/cardbook/internal/model"
)

// ListOptions is a resolved page window.
type ListOptions struct {
	Limit  int
	Offset int
}

// ListOptionsFor turns a validated page request into a window.
func ListOptionsFor(p model.PageRequest) ListOptions {
	return ListOptions{Limit: p.Limit, Offset: p.Offset()}
}

// Sort keys accepted by BookmarkRepository.ListByGroup.
const (
	SortCreatedAt   = "createdAt"
	SortName        = "name"
	SortCompanyName = "companyName"
	SortJobTitle    = "jobTitle"
)

// SortFields lists the valid group-contents sort keys.
var SortFields = []string{SortCreatedAt, SortName, SortCompanyName, SortJobTitle}

// GroupQuery selects one page of a group's bookmarks. Pinned bookmarks
// always come first; SortField orders within the pinned and unpinned runs.
type GroupQuery struct {
	ListOptions
	SortField string
	Ascending bool
}

// CardWallFilter narrows the public card wall. Empty fields match all.
// City and Domain are exact matches, Name is a case-insensitive substring.
type CardWallFilter struct {
	City   string
	Domain string
	Name   string
}

type UserRepository interface {
	// Create fails with Conflict when the email is taken.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id, name, avatarURL string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, id string) (*model.Card, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Card, error)
	// Update replaces the stored card with card, bumping UpdatedAt.
	Update(ctx context.Context, card *model.Card) error
	Delete(ctx context.Context, id string) error
	// ListPublished returns one page of published cards, newest first,
	// together with the number of cards matching filter.
	ListPublished(ctx context.Context, filter CardWallFilter, opts ListOptions) ([]model.Card, int64, error)
}

type CanvasRepository interface {
	Create(ctx context.Context, canvas *model.Canvas) error
	Get(ctx context.Context, cardID string) (*model.Canvas, error)
	Save(ctx context.Context, canvas *model.Canvas) error
	Delete(ctx context.Context, cardID string) error
}

type BookmarkListRepository interface {
	// Create fails with Conflict when the user already has a list.
	Create(ctx context.Context, list *model.BookmarkList) error
	Get(ctx context.Context, userID string) (*model.BookmarkList, error)
	// SaveGroups replaces the ordered group sequence. Last write wins.
	SaveGroups(ctx context.Context, userID string, groups []model.Group) error
	// AddTags set-adds tags to the list without reading it first.
	AddTags(ctx context.Context, userID string, tags []string) error
	Delete(ctx context.Context, userID string) error
}

type BookmarkRepository interface {
	// Create fails with Conflict when the (follower, card) pair exists.
	Create(ctx context.Context, bookmark *model.Bookmark) error
	Get(ctx context.Context, key model.BookmarkKey) (*model.Bookmark, error)
	// Delete fails with NotFound when nothing was deleted.
	Delete(ctx context.Context, key model.BookmarkKey) error
	SetPinned(ctx context.Context, key model.BookmarkKey, pinned bool) error
	// Annotate applies the non-nil parts of a and returns the stored result.
	Annotate(ctx context.Context, key model.BookmarkKey, a model.BookmarkAnnotation) (*model.Bookmark, error)
	// ReassignGroup moves every bookmark of userID in fromGroupID to
	// toGroupID and reports how many moved.
	ReassignGroup(ctx context.Context, userID, fromGroupID, toGroupID string) (int64, error)
	DeleteByCard(ctx context.Context, cardID string) (int64, error)
	// Followers returns the ids of users who bookmarked cardID.
	Followers(ctx context.Context, cardID string) ([]string, error)

	ListByGroup(ctx context.Context, userID, groupID string, q GroupQuery) ([]model.BookmarkRecord, int64, error)
	// ListByTag returns bookmarks of userID carrying tag, newest first.
	ListByTag(ctx context.Context, userID, tag string, opts ListOptions) ([]model.BookmarkRecord, int64, error)
	// Search matches q case-insensitively against the public name, company
	// and job title of the bookmarked card and the bookmark's tags and note.
	Search(ctx context.Context, userID, q string, opts ListOptions) ([]model.BookmarkRecord, int64, error)
}

type MessageRepository interface {
	// CreateMany inserts messages one by one and stops at the first
	// failure; the count of inserted messages is returned either way.
	CreateMany(ctx context.Context, msgs []model.Message) (int, error)
	// ListInbox returns messages addressed to userID, newest first. An
	// empty category matches both.
	ListInbox(ctx context.Context, userID string, category model.MessageCategory) ([]model.InboxMessage, error)
	// MarkRead fails with NotFound unless id exists and is addressed to
	// recipientID.
	MarkRead(ctx context.Context, id, recipientID string) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// Store bundles every repository behind one storage handle. cmd/server
// opens it, passes it down and closes it on shutdown.
type Store interface {
	Users() UserRepository
	Cards() CardRepository
	Canvases() CanvasRepository
	BookmarkLists() BookmarkListRepository
	Bookmarks() BookmarkRepository
	Messages() MessageRepository
	Close() error
}
