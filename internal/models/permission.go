package models

import "time"

// Permission is a single in-game permission string, e.g. "cameraman" or
// "kick". Title must be a permission the game server itself understands.
type Permission struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Title       string    `gorm:"uniqueIndex;not null" json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
