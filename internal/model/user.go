// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account. Email is unique across users.
//
// PasswordHash never leaves the server; the json tag hides it from every
// response.
type User struct {
	ID           string    `json:"id"        bson:"_id"`
	Name         string    `json:"name"      bson:"name"`
	Email        string    `json:"email"     bson:"email"`
	PasswordHash string    `json:"-"         bson:"passwordHash"`
	AvatarURL    string    `json:"avatar"    bson:"avatar"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Navbar is the small status block the front-end shows on every page.
type Navbar struct {
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar"`
	UnreadCount int64  `json:"unreadCount"`
}
