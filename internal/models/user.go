package models

import (
	"errors"
	"strings"
	"time"
)

// User is a directory entry. The ledger only references users by Username.
type User struct {
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizeUsername strips surrounding space and a leading chat-style "@".
func NormalizeUsername(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

func (u *User) Validate() error {
	u.Username = NormalizeUsername(u.Username)
	if u.Username == "" {
		return errors.New("username required")
	}
	if strings.ContainsAny(u.Username, " |") {
		return errors.New("username must not contain spaces or '|'")
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	return nil
}
