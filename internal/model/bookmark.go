package model

import "time"

// BookmarkKey is the natural key of a bookmark. The stores enforce its
// uniqueness, so a second insert for the same pair fails with Conflict.
type BookmarkKey struct {
	FollowerUserID string `json:"followerUserId" bson:"followerUserId"`
	FollowedCardID string `json:"followedCardId" bson:"followedCardId"`
}

// Bookmark is one user's saved reference to another user's card.
type Bookmark struct {
	FollowerUserID  string    `json:"followerUserId"`
	FollowedCardID  string    `json:"followedCardId"`
	FollowerGroupID string    `json:"followerGroupId"`
	IsPinned        bool      `json:"isPinned"`
	Tags            []string  `json:"tags"`
	Note            string    `json:"note"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (b Bookmark) Key() BookmarkKey {
	return BookmarkKey{FollowerUserID: b.FollowerUserID, FollowedCardID: b.FollowedCardID}
}

// BookmarkAnnotation is a partial update. Nil fields are left untouched; a
// non-nil pointer to "" clears the note.
type BookmarkAnnotation struct {
	Note            *string
	Tags            []string
	FollowerGroupID string
}

// IsEmpty reports whether the annotation would change nothing.
func (a BookmarkAnnotation) IsEmpty() bool {
	return a.Note == nil && a.Tags == nil && a.FollowerGroupID == ""
}

// BookmarkRecord is a bookmark joined with the public summary of the card
// it points at. It is built at read time and never stored.
type BookmarkRecord struct {
	Bookmark
	Card CardSummary `json:"card"`
}
