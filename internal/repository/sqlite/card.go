package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.CardRepository = (*CardDB)(nil)

type CardDB struct {
	conn *sql.DB
}

const cardColumns = `id, user_id, job_info, homepage_title, homepage_links, is_published,
	layout_direction, card_image_data, created_at, updated_at`

func scanCard(s scanner) (*model.Card, error) {
	var (
		c                         model.Card
		jobInfo, links, imageData string
		createdAt, updatedAt      string
	)
	err := s.Scan(&c.ID, &c.OwnerID, &jobInfo, &c.HomepageTitle, &links, &c.IsPublished,
		&c.LayoutDirection, &imageData, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(jobInfo, &c.JobInfo); err != nil {
		return nil, fmt.Errorf("decoding job_info: %w", err)
	}
	if err := fromJSON(links, &c.HomepageLinks); err != nil {
		return nil, fmt.Errorf("decoding homepage_links: %w", err)
	}
	if c.HomepageLinks == nil {
		c.HomepageLinks = []model.HomepageLink{}
	}
	if err := fromJSON(imageData, &c.CardImageData); err != nil {
		return nil, fmt.Errorf("decoding card_image_data: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// cardArgs encodes the mutable columns in the order id-less UPDATEs use.
func cardArgs(card *model.Card) ([]any, error) {
	if card.HomepageLinks == nil {
		card.HomepageLinks = []model.HomepageLink{}
	}
	jobInfo, err := toJSON(card.JobInfo)
	if err != nil {
		return nil, err
	}
	links, err := toJSON(card.HomepageLinks)
	if err != nil {
		return nil, err
	}
	imageData, err := toJSON(card.CardImageData)
	if err != nil {
		return nil, err
	}
	return []any{jobInfo, card.HomepageTitle, links, card.IsPublished,
		string(card.LayoutDirection), imageData}, nil
}

func (c *CardDB) Create(ctx context.Context, card *model.Card) error {
	card.ID = xid.New().String()
	card.CreatedAt = now()
	card.UpdatedAt = card.CreatedAt
	if card.LayoutDirection == "" {
		card.LayoutDirection = model.LayoutHorizontal
	}

	args, err := cardArgs(card)
	if err != nil {
		return fmt.Errorf("sqlite: encoding card: %w", err)
	}
	args = append([]any{card.ID, card.OwnerID}, args...)
	args = append(args, formatTime(card.CreatedAt), formatTime(card.UpdatedAt))

	_, err = c.conn.ExecContext(ctx,
		`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: creating card: %w", err)
	}
	return nil
}

func (c *CardDB) GetByID(ctx context.Context, id string) (*model.Card, error) {
	row := c.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("card", id)
		}
		return nil, fmt.Errorf("sqlite: getting card %s: %w", id, err)
	}
	return card, nil
}

func (c *CardDB) ListByOwner(ctx context.Context, ownerID string) ([]model.Card, error) {
	return c.query(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		ownerID)
}

func (c *CardDB) Update(ctx context.Context, card *model.Card) error {
	card.UpdatedAt = now()
	args, err := cardArgs(card)
	if err != nil {
		return fmt.Errorf("sqlite: encoding card: %w", err)
	}
	args = append(args, formatTime(card.UpdatedAt), card.ID)

	result, err := c.conn.ExecContext(ctx,
		`UPDATE cards SET job_info = ?, homepage_title = ?, homepage_links = ?, is_published = ?,
		 layout_direction = ?, card_image_data = ?, updated_at = ?
		 WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("sqlite: updating card %s: %w", card.ID, err)
	}
	return expectOne(result, "card", card.ID)
}

func (c *CardDB) Delete(ctx context.Context, id string) error {
	result, err := c.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting card %s: %w", id, err)
	}
	return expectOne(result, "card", id)
}

// ListPublished filters on public fields only, so a hidden city never
// matches a city filter.
func (c *CardDB) ListPublished(ctx context.Context, f repository.CardWallFilter, opts repository.ListOptions) ([]model.Card, int64, error) {
	where := []string{"is_published = 1"}
	var args []any
	if f.City != "" {
		where = append(where, `json_extract(job_info, '$.city.isPublic') = 1 AND json_extract(job_info, '$.city.content') = ?`)
		args = append(args, f.City)
	}
	if f.Domain != "" {
		where = append(where, `json_extract(job_info, '$.domain.isPublic') = 1 AND json_extract(job_info, '$.domain.content') = ?`)
		args = append(args, f.Domain)
	}
	if f.Name != "" {
		where = append(where, `json_extract(job_info, '$.name.isPublic') = 1 AND instr(fold(json_extract(job_info, '$.name.content')), ?) > 0`)
		args = append(args, strings.ToLower(f.Name))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := c.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting published cards: %w", err)
	}

	cards, err := c.query(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE `+clause+`
		 ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

func (c *CardDB) query(ctx context.Context, query string, args ...any) ([]model.Card, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cards: %w", err)
	}
	defer rows.Close()

	cards := []model.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cards: %w", err)
	}
	return cards, nil
}

// expectOne maps a write that touched no row to NotFound.
func expectOne(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
