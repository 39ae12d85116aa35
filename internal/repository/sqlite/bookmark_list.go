package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.BookmarkListRepository = (*BookmarkListDB)(nil)

// BookmarkListDB keeps one row per user. user_id is the primary key, so a
// second Create for the same user is a Conflict.
type BookmarkListDB struct {
	conn *sql.DB
}

func (b *BookmarkListDB) Create(ctx context.Context, list *model.BookmarkList) error {
	if list.Tags == nil {
		list.Tags = []string{}
	}
	groups, err := toJSON(list.Groups)
	if err != nil {
		return fmt.Errorf("sqlite: encoding groups: %w", err)
	}
	tags, err := toJSON(list.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	list.CreatedAt = now()
	list.UpdatedAt = list.CreatedAt

	_, err = b.conn.ExecContext(ctx,
		`INSERT INTO bookmark_lists (user_id, groups, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		list.UserID, groups, tags, formatTime(list.CreatedAt), formatTime(list.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("bookmark list", list.UserID)
		}
		return fmt.Errorf("sqlite: creating bookmark list: %w", err)
	}
	return nil
}

func (b *BookmarkListDB) Get(ctx context.Context, userID string) (*model.BookmarkList, error) {
	list := model.BookmarkList{UserID: userID}
	var groups, tags, createdAt, updatedAt string
	err := b.conn.QueryRowContext(ctx,
		`SELECT groups, tags, created_at, updated_at FROM bookmark_lists WHERE user_id = ?`, userID,
	).Scan(&groups, &tags, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("bookmark list", userID)
		}
		return nil, fmt.Errorf("sqlite: getting bookmark list %s: %w", userID, err)
	}

	if err := fromJSON(groups, &list.Groups); err != nil {
		return nil, fmt.Errorf("sqlite: decoding groups: %w", err)
	}
	if err := fromJSON(tags, &list.Tags); err != nil {
		return nil, fmt.Errorf("sqlite: decoding tags: %w", err)
	}
	if list.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if list.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &list, nil
}

func (b *BookmarkListDB) SaveGroups(ctx context.Context, userID string, groups []model.Group) error {
	encoded, err := toJSON(groups)
	if err != nil {
		return fmt.Errorf("sqlite: encoding groups: %w", err)
	}
	result, err := b.conn.ExecContext(ctx,
		`UPDATE bookmark_lists SET groups = ?, updated_at = ? WHERE user_id = ?`,
		encoded, formatTime(now()), userID)
	if err != nil {
		return fmt.Errorf("sqlite: saving groups of %s: %w", userID, err)
	}
	return expectOne(result, "bookmark list", userID)
}

// AddTags appends each tag not yet present. Membership test and append
// share one UPDATE statement per tag.
func (b *BookmarkListDB) AddTags(ctx context.Context, userID string, tags []string) error {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		_, err := b.conn.ExecContext(ctx,
			`UPDATE bookmark_lists
			 SET tags = json_insert(tags, '$[#]', ?), updated_at = ?
			 WHERE user_id = ?
			   AND NOT EXISTS (SELECT 1 FROM json_each(bookmark_lists.tags) WHERE value = ?)`,
			tag, formatTime(now()), userID, tag)
		if err != nil {
			return fmt.Errorf("sqlite: adding tag to %s: %w", userID, err)
		}
	}
	return nil
}

func (b *BookmarkListDB) Delete(ctx context.Context, userID string) error {
	result, err := b.conn.ExecContext(ctx, `DELETE FROM bookmark_lists WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting bookmark list %s: %w", userID, err)
	}
	return expectOne(result, "bookmark list", userID)
}
