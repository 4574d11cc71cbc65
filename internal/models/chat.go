// Package models defines shared data types for the application.
package models

import (
	"fmt"
	"math/rand"
	"time"
)

// ChatKind represents the kind of conversation surface a chat is.
type ChatKind string

// ChatKind constants define the known conversation surfaces.
const (
	KindPersonal   ChatKind = "personal"
	KindFaction    ChatKind = "faction"
	KindSupergroup ChatKind = "supergroup"
	KindChannel    ChatKind = "channel"
)

// AdoptKind maps a declared chat type from the message source to a ChatKind.
// "private" and "group" have local names; every other declared type passes
// through verbatim, so a new upstream type is accepted silently rather than
// rejected.
func AdoptKind(declared string) ChatKind {
	switch declared {
	case "private":
		return KindPersonal
	case "group":
		return KindFaction
	default:
		return ChatKind(declared)
	}
}

// Chat represents a conversation surface: a personal dialog, a group (faction),
// a supergroup or a broadcast channel. Users are chats of kind personal.
type Chat struct {
	ID         int64 `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex:idx_chats_telegram_id"`

	Kind ChatKind `gorm:"default:personal"`

	// display fields
	Title     *string
	FirstName *string
	LastName  *string
	Username  *string

	// nil means the chat is disabled (bot left or was kicked)
	ActiveAt *time.Time

	// featured winner-of-the-day label, nil when the game is off
	Winner *string

	// percentage chance of replying without being addressed
	Random int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the best human-readable name for the chat.
func (c *Chat) DisplayName() string {
	for _, s := range []*string{c.Username, c.FirstName, c.LastName, c.Title} {
		if s != nil && *s != "" {
			return *s
		}
	}
	return ""
}

// Link returns an HTML anchor pointing at the chat's telegram identity.
func (c *Chat) Link() string {
	return fmt.Sprintf("<a href='tg://user?id=%d'>%s</a>", c.TelegramID, c.DisplayName())
}

// Personal reports whether the chat is a 1:1 dialog.
func (c *Chat) Personal() bool {
	return c.Kind == KindPersonal
}

// Enabled reports whether the chat is currently active.
func (c *Chat) Enabled() bool {
	return c.ActiveAt != nil
}

// Disabled reports whether the chat has been disabled or left.
func (c *Chat) Disabled() bool {
	return c.ActiveAt == nil
}

// Enable sets the activity marker to now.
func (c *Chat) Enable() {
	now := time.Now()
	c.ActiveAt = &now
}

// Disable clears the activity marker.
func (c *Chat) Disable() {
	c.ActiveAt = nil
}

// ShouldReply rolls the chat's random-answer chance with an additional bonus.
func (c *Chat) ShouldReply(extra int) bool {
	return rand.Intn(100) < c.Random+extra
}
