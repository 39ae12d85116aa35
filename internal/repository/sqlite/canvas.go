package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.CanvasRepository = (*CanvasDB)(nil)

// CanvasDB stores editor payloads verbatim. Nothing here parses them.
type CanvasDB struct {
	conn *sql.DB
}

func (c *CanvasDB) Create(ctx context.Context, canvas *model.Canvas) error {
	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO canvases (card_id, front, back, position) VALUES (?, ?, ?, ?)`,
		canvas.CardID, canvas.Data.Front, canvas.Data.Back, canvas.Data.Position)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("canvas", canvas.CardID)
		}
		return fmt.Errorf("sqlite: creating canvas: %w", err)
	}
	return nil
}

func (c *CanvasDB) Get(ctx context.Context, cardID string) (*model.Canvas, error) {
	canvas := model.Canvas{CardID: cardID}
	err := c.conn.QueryRowContext(ctx,
		`SELECT front, back, position FROM canvases WHERE card_id = ?`, cardID,
	).Scan(&canvas.Data.Front, &canvas.Data.Back, &canvas.Data.Position)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("canvas", cardID)
		}
		return nil, fmt.Errorf("sqlite: getting canvas %s: %w", cardID, err)
	}
	return &canvas, nil
}

func (c *CanvasDB) Save(ctx context.Context, canvas *model.Canvas) error {
	result, err := c.conn.ExecContext(ctx,
		`UPDATE canvases SET front = ?, back = ?, position = ? WHERE card_id = ?`,
		canvas.Data.Front, canvas.Data.Back, canvas.Data.Position, canvas.CardID)
	if err != nil {
		return fmt.Errorf("sqlite: saving canvas %s: %w", canvas.CardID, err)
	}
	return expectOne(result, "canvas", canvas.CardID)
}

func (c *CanvasDB) Delete(ctx context.Context, cardID string) error {
	result, err := c.conn.ExecContext(ctx, `DELETE FROM canvases WHERE card_id = ?`, cardID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting canvas %s: %w", cardID, err)
	}
	return expectOne(result, "canvas", cardID)
}
