package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/repository"
)

var _ repository.MessageRepository = (*MessageDB)(nil)

type MessageDB struct {
	conn *sql.DB
}

// CreateMany has no transaction around it: messages inserted before a
// failure stay inserted.
func (m *MessageDB) CreateMany(ctx context.Context, msgs []model.Message) (int, error) {
	for i := range msgs {
		msg := &msgs[i]
		msg.ID = xid.New().String()
		msg.CreatedAt = now()

		_, err := m.conn.ExecContext(ctx,
			`INSERT INTO messages (id, sender_user_id, sender_card_id, recipient_user_id,
			 is_read, category, message_body, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.SenderUserID, msg.SenderCardID, msg.RecipientUserID,
			msg.IsRead, string(msg.Category), msg.MessageBody, formatTime(msg.CreatedAt))
		if err != nil {
			return i, fmt.Errorf("sqlite: creating message for %s: %w", msg.RecipientUserID, err)
		}
	}
	return len(msgs), nil
}

// ListInbox shows the sender's name only while the sender's card keeps it
// public. A deleted sender card leaves the name empty.
func (m *MessageDB) ListInbox(ctx context.Context, userID string, category model.MessageCategory) ([]model.InboxMessage, error) {
	rows, err := m.conn.QueryContext(ctx,
		`SELECT m.id, m.sender_user_id, m.sender_card_id, m.recipient_user_id, m.is_read,
		        m.category, m.message_body, m.created_at,
		        COALESCE(CASE WHEN json_extract(c.job_info, '$.name.isPublic') = 1
		                      THEN json_extract(c.job_info, '$.name.content') END, ''),
		        COALESCE(u.avatar_url, '')
		 FROM messages m
		 LEFT JOIN cards c ON c.id = m.sender_card_id
		 LEFT JOIN users u ON u.id = m.sender_user_id
		 WHERE m.recipient_user_id = ? AND (? = '' OR m.category = ?)
		 ORDER BY m.created_at DESC, m.rowid DESC`,
		userID, string(category), string(category))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing inbox of %s: %w", userID, err)
	}
	defer rows.Close()

	inbox := []model.InboxMessage{}
	for rows.Next() {
		var (
			im        model.InboxMessage
			createdAt string
		)
		err := rows.Scan(&im.ID, &im.SenderUserID, &im.SenderCardID, &im.RecipientUserID, &im.IsRead,
			&im.Category, &im.MessageBody, &createdAt, &im.SenderName, &im.SenderAvatar)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning message: %w", err)
		}
		if im.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		inbox = append(inbox, im)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating inbox: %w", err)
	}
	return inbox, nil
}

// MarkRead matches on recipient too. Another user's message id reports
// NotFound rather than Forbidden.
func (m *MessageDB) MarkRead(ctx context.Context, id, recipientID string) error {
	result, err := m.conn.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE id = ? AND recipient_user_id = ?`,
		id, recipientID)
	if err != nil {
		return fmt.Errorf("sqlite: marking message %s read: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("message", id)
	}
	return nil
}

func (m *MessageDB) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := m.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_user_id = ? AND is_read = 0`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting unread messages of %s: %w", userID, err)
	}
	return n, nil
}
