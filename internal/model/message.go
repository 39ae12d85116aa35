package model

import (
	"fmt"
	"time"

	"github.com/sakif/cardbook/internal/apperror"
)

type MessageCategory string

const (
	MessageDelete MessageCategory = "DELETE"
	MessageChange MessageCategory = "CHANGE"
)

// ParseMessageCategory accepts the two known categories.
func ParseMessageCategory(s string) (MessageCategory, error) {
	switch c := MessageCategory(s); c {
	case MessageDelete, MessageChange:
		return c, nil
	}
	return "", apperror.ValidationFailed("category",
		fmt.Sprintf("category must be %s or %s", MessageDelete, MessageChange))
}

// Message is a notification from a card owner to one follower of the card.
type Message struct {
	ID              string          `json:"id"              bson:"_id"`
	SenderUserID    string          `json:"senderUserId"    bson:"senderUserId"`
	SenderCardID    string          `json:"senderCardId"    bson:"senderCardId"`
	RecipientUserID string          `json:"recipientUserId" bson:"recipientUserId"`
	IsRead          bool            `json:"isRead"          bson:"isRead"`
	Category        MessageCategory `json:"category"        bson:"category"`
	MessageBody     string          `json:"messageBody"     bson:"messageBody"`
	CreatedAt       time.Time       `json:"createdAt"       bson:"createdAt"`
}

// InboxMessage is a message enriched with what the inbox shows about the
// sender. SenderName is empty when the sender's card hides its name.
type InboxMessage struct {
	Message
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar"`
}
