package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.BookmarkRepository = (*BookmarkDB)(nil)

// BookmarkDB stores one row per (follower, card) pair. The composite
// primary key is what rejects duplicates; there is no check-then-insert.
type BookmarkDB struct {
	conn *sql.DB
}

const bookmarkColumns = `follower_user_id, followed_card_id, follower_group_id, is_pinned,
	tags, note, created_at, updated_at`

// recordFrom joins each bookmark with the card it points at and the
// card owner's avatar.
const recordFrom = `FROM bookmarks b
	JOIN cards c ON c.id = b.followed_card_id
	LEFT JOIN users u ON u.id = c.user_id`

const recordColumns = `b.follower_user_id, b.followed_card_id, b.follower_group_id, b.is_pinned,
	b.tags, b.note, b.created_at, b.updated_at,
	c.id, c.job_info, c.card_image_data, COALESCE(u.avatar_url, '')`

// sortColumns maps the public sort keys onto SQL expressions. Only these
// strings are ever spliced into ORDER BY.
var sortColumns = map[string]string{
	repository.SortCreatedAt:   "b.created_at",
	repository.SortName:        "json_extract(c.job_info, '$.name.content')",
	repository.SortCompanyName: "json_extract(c.job_info, '$.companyName.content')",
	repository.SortJobTitle:    "json_extract(c.job_info, '$.jobTitle.content')",
}

func scanBookmark(s scanner, extra ...any) (*model.Bookmark, error) {
	var (
		bm                         model.Bookmark
		tags, createdAt, updatedAt string
	)
	dest := append([]any{&bm.FollowerUserID, &bm.FollowedCardID, &bm.FollowerGroupID, &bm.IsPinned,
		&tags, &bm.Note, &createdAt, &updatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if err := fromJSON(tags, &bm.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if bm.Tags == nil {
		bm.Tags = []string{}
	}
	var err error
	if bm.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if bm.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &bm, nil
}

func scanRecord(s scanner) (*model.BookmarkRecord, error) {
	var (
		card               model.Card
		jobInfo, imageData string
		avatar             string
	)
	bm, err := scanBookmark(s, &card.ID, &jobInfo, &imageData, &avatar)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(jobInfo, &card.JobInfo); err != nil {
		return nil, fmt.Errorf("decoding job_info: %w", err)
	}
	if err := fromJSON(imageData, &card.CardImageData); err != nil {
		return nil, fmt.Errorf("decoding card_image_data: %w", err)
	}
	return &model.BookmarkRecord{Bookmark: *bm, Card: card.Summarize(avatar)}, nil
}

// Create inserts bm and fails with Conflict when the (follower, card) pair
// already exists.
func (b *BookmarkDB) Create(ctx context.Context, bm *model.Bookmark) error {
	if bm.Tags == nil {
		bm.Tags = []string{}
	}
	tags, err := toJSON(bm.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	bm.CreatedAt = now()
	bm.UpdatedAt = bm.CreatedAt

	_, err = b.conn.ExecContext(ctx,
		`INSERT INTO bookmarks (`+bookmarkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bm.FollowerUserID, bm.FollowedCardID, bm.FollowerGroupID, bm.IsPinned,
		tags, bm.Note, formatTime(bm.CreatedAt), formatTime(bm.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("bookmark", bm.FollowedCardID)
		}
		return fmt.Errorf("sqlite: creating bookmark: %w", err)
	}
	return nil
}

// Get returns the bookmark stored under key or NotFound.
func (b *BookmarkDB) Get(ctx context.Context, key model.BookmarkKey) (*model.Bookmark, error) {
	row := b.conn.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE follower_user_id = ? AND followed_card_id = ?`,
		key.FollowerUserID, key.FollowedCardID)
	bm, err := scanBookmark(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("bookmark", key.FollowedCardID)
		}
		return nil, fmt.Errorf("sqlite: getting bookmark: %w", err)
	}
	return bm, nil
}

// Delete removes the bookmark under key. NotFound when nothing was deleted.
func (b *BookmarkDB) Delete(ctx context.Context, key model.BookmarkKey) error {
	result, err := b.conn.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE follower_user_id = ? AND followed_card_id = ?`,
		key.FollowerUserID, key.FollowedCardID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting bookmark: %w", err)
	}
	return expectOne(result, "bookmark", key.FollowedCardID)
}

// SetPinned sets the pin flag. Pinning twice is not an error.
func (b *BookmarkDB) SetPinned(ctx context.Context, key model.BookmarkKey, pinned bool) error {
	result, err := b.conn.ExecContext(ctx,
		`UPDATE bookmarks SET is_pinned = ?, updated_at = ?
		 WHERE follower_user_id = ? AND followed_card_id = ?`,
		pinned, formatTime(now()), key.FollowerUserID, key.FollowedCardID)
	if err != nil {
		return fmt.Errorf("sqlite: pinning bookmark: %w", err)
	}
	return expectOne(result, "bookmark", key.FollowedCardID)
}

// Annotate writes the non-nil parts of a and returns the stored bookmark.
func (b *BookmarkDB) Annotate(ctx context.Context, key model.BookmarkKey, a model.BookmarkAnnotation) (*model.Bookmark, error) {
	if a.IsEmpty() {
		return b.Get(ctx, key)
	}

	var (
		sets []string
		args []any
	)
	if a.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *a.Note)
	}
	if a.Tags != nil {
		tags, err := toJSON(a.Tags)
		if err != nil {
			return nil, fmt.Errorf("sqlite: encoding tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if a.FollowerGroupID != "" {
		sets = append(sets, "follower_group_id = ?")
		args = append(args, a.FollowerGroupID)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(now()), key.FollowerUserID, key.FollowedCardID)

	result, err := b.conn.ExecContext(ctx,
		`UPDATE bookmarks SET `+strings.Join(sets, ", ")+`
		 WHERE follower_user_id = ? AND followed_card_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: annotating bookmark: %w", err)
	}
	if err := expectOne(result, "bookmark", key.FollowedCardID); err != nil {
		return nil, err
	}
	return b.Get(ctx, key)
}

// ReassignGroup moves a user's bookmarks between groups in one UPDATE.
func (b *BookmarkDB) ReassignGroup(ctx context.Context, userID, fromGroupID, toGroupID string) (int64, error) {
	result, err := b.conn.ExecContext(ctx,
		`UPDATE bookmarks SET follower_group_id = ?, updated_at = ?
		 WHERE follower_user_id = ? AND follower_group_id = ?`,
		toGroupID, formatTime(now()), userID, fromGroupID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reassigning group %s: %w", fromGroupID, err)
	}
	return result.RowsAffected()
}

// DeleteByCard removes every bookmark of cardID, across all followers.
func (b *BookmarkDB) DeleteByCard(ctx context.Context, cardID string) (int64, error) {
	result, err := b.conn.ExecContext(ctx, `DELETE FROM bookmarks WHERE followed_card_id = ?`, cardID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting bookmarks of card %s: %w", cardID, err)
	}
	return result.RowsAffected()
}

// Followers lists the users who bookmarked cardID, oldest first.
func (b *BookmarkDB) Followers(ctx context.Context, cardID string) ([]string, error) {
	rows, err := b.conn.QueryContext(ctx,
		`SELECT follower_user_id FROM bookmarks WHERE followed_card_id = ? ORDER BY created_at, rowid`,
		cardID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing followers of %s: %w", cardID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning follower: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByGroup pages through one group, pinned bookmarks first.
func (b *BookmarkDB) ListByGroup(ctx context.Context, userID, groupID string, q repository.GroupQuery) ([]model.BookmarkRecord, int64, error) {
	col, ok := sortColumns[q.SortField]
	if !ok {
		col = sortColumns[repository.SortCreatedAt]
	}
	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}
	order := fmt.Sprintf("b.is_pinned DESC, %s %s, b.rowid %s", col, dir, dir)

	return b.records(ctx, `b.follower_user_id = ? AND b.follower_group_id = ?`,
		[]any{userID, groupID}, order, q.ListOptions)
}

// ListByTag pages through bookmarks carrying tag, newest first.
func (b *BookmarkDB) ListByTag(ctx context.Context, userID, tag string, opts repository.ListOptions) ([]model.BookmarkRecord, int64, error) {
	return b.records(ctx,
		`b.follower_user_id = ? AND EXISTS (SELECT 1 FROM json_each(b.tags) WHERE json_each.value = ?)`,
		[]any{userID, tag}, "b.created_at DESC, b.rowid DESC", opts)
}

// Search matches q against public job-info fields, the note and the tags,
// folding case on both sides. Fields the card owner hid are never searched.
func (b *BookmarkDB) Search(ctx context.Context, userID, q string, opts repository.ListOptions) ([]model.BookmarkRecord, int64, error) {
	needle := strings.ToLower(q)
	field := func(name string) string {
		return fmt.Sprintf(`(json_extract(c.job_info, '$.%[1]s.isPublic') = 1
			AND instr(fold(json_extract(c.job_info, '$.%[1]s.content')), ?) > 0)`, name)
	}
	where := `b.follower_user_id = ? AND (` +
		field("name") + ` OR ` + field("companyName") + ` OR ` + field("jobTitle") + `
		OR instr(fold(b.note), ?) > 0
		OR EXISTS (SELECT 1 FROM json_each(b.tags) WHERE instr(fold(json_each.value), ?) > 0))`

	return b.records(ctx, where,
		[]any{userID, needle, needle, needle, needle, needle},
		"b.created_at DESC, b.rowid DESC", opts)
}

// records runs the count and the page query over the joined view. The
// count finishes before the page query opens its rows.
func (b *BookmarkDB) records(ctx context.Context, where string, args []any, order string, opts repository.ListOptions) ([]model.BookmarkRecord, int64, error) {
	var total int64
	if err := b.conn.QueryRowContext(ctx, `SELECT COUNT(*) `+recordFrom+` WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting bookmarks: %w", err)
	}

	pageArgs := append(append([]any{}, args...), opts.Limit, opts.Offset)
	rows, err := b.conn.QueryContext(ctx,
		`SELECT `+recordColumns+` `+recordFrom+` WHERE `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing bookmarks: %w", err)
	}
	defer rows.Close()

	records := []model.BookmarkRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning bookmark: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating bookmarks: %w", err)
	}
	return records, total, nil
}
