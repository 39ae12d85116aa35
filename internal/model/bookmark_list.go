package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sakif/cardbook/internal/apperror"
)

// DefaultGroupName is the name of the group every account starts with.
const DefaultGroupName = "預設"

// Group is a named bucket bookmarks are filed into.
type Group struct {
	ID             string `json:"id"             bson:"id"`
	Name           string `json:"name"           bson:"name"`
	IsDefaultGroup bool   `json:"isDefaultGroup" bson:"isDefaultGroup"`
}

// BookmarkList is the per-user singleton that owns the ordered groups and
// the accumulated tag set.
//
// Exactly one group is the default at all times. Every mutating method
// works on a copy and re-checks that invariant before returning, so an
// invalid list can never reach the repository.
//
// Tags only ever grows. A tag stays listed after the last bookmark using it
// drops it.
type BookmarkList struct {
	UserID    string    `json:"userId"    bson:"userId"`
	Groups    []Group   `json:"group"     bson:"group"`
	Tags      []string  `json:"tags"      bson:"tags"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NewBookmarkList returns the list created at sign-up: a single default
// group with the given id.
func NewBookmarkList(userID, defaultGroupID string) BookmarkList {
	return BookmarkList{
		UserID: userID,
		Groups: []Group{{ID: defaultGroupID, Name: DefaultGroupName, IsDefaultGroup: true}},
		Tags:   []string{},
	}
}

// DefaultGroup returns the group new bookmarks land in.
func (l BookmarkList) DefaultGroup() (Group, error) {
	for _, g := range l.Groups {
		if g.IsDefaultGroup {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("bookmark list of user %s has no default group", l.UserID)
}

// GroupIndex returns the position of groupID, or -1.
func (l BookmarkList) GroupIndex(groupID string) int {
	return slices.IndexFunc(l.Groups, func(g Group) bool { return g.ID == groupID })
}

// HasGroup reports whether groupID belongs to this list.
func (l BookmarkList) HasGroup(groupID string) bool {
	return l.GroupIndex(groupID) >= 0
}

// CheckInvariant verifies that exactly one group is the default.
func (l BookmarkList) CheckInvariant() error {
	n := 0
	for _, g := range l.Groups {
		if g.IsDefaultGroup {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("bookmark list of user %s has %d default groups", l.UserID, n)
	}
	return nil
}

// WithGroup appends a new non-default group at the end of the order.
func (l BookmarkList) WithGroup(id, name string) (BookmarkList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return l, apperror.ValidationFailed("name", "group name is required")
	}
	l.Groups = append(slices.Clone(l.Groups), Group{ID: id, Name: name})
	return l, l.CheckInvariant()
}

// WithRenamedGroup renames groupID. Renaming the default group is allowed.
func (l BookmarkList) WithRenamedGroup(groupID, name string) (BookmarkList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return l, apperror.ValidationFailed("name", "group name is required")
	}
	i := l.GroupIndex(groupID)
	if i < 0 {
		return l, apperror.NotFound("group", groupID)
	}
	groups := slices.Clone(l.Groups)
	groups[i].Name = name
	l.Groups = groups
	return l, l.CheckInvariant()
}

// WithoutGroup removes a non-default group. The default group is protected.
func (l BookmarkList) WithoutGroup(groupID string) (BookmarkList, error) {
	i := l.GroupIndex(groupID)
	if i < 0 {
		return l, apperror.NotFound("group", groupID)
	}
	if l.Groups[i].IsDefaultGroup {
		return l, apperror.Forbidden("the default group cannot be deleted")
	}
	l.Groups = slices.Delete(slices.Clone(l.Groups), i, i+1)
	return l, l.CheckInvariant()
}

// WithSwappedGroup exchanges groupID with whichever group sits at newIndex.
// Given [A B C], swapping B to 0 yields [B A C].
func (l BookmarkList) WithSwappedGroup(groupID string, newIndex int) (BookmarkList, error) {
	i := l.GroupIndex(groupID)
	if i < 0 {
		return l, apperror.ValidationFailed("groupId", fmt.Sprintf("group %s does not belong to this list", groupID))
	}
	groups, err := swapAt(l.Groups, i, newIndex)
	if err != nil {
		return l, err
	}
	l.Groups = groups
	return l, l.CheckInvariant()
}

// WithTags set-adds tags, keeping first-seen order.
func (l BookmarkList) WithTags(tags []string) BookmarkList {
	merged := slices.Clone(l.Tags)
	for _, t := range tags {
		if t != "" && !slices.Contains(merged, t) {
			merged = append(merged, t)
		}
	}
	l.Tags = merged
	return l
}
