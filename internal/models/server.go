package models

import (
	"time"

	"gorm.io/gorm"
)

// Server is a single game server that admin config files are generated for.
type Server struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Title       string    `gorm:"uniqueIndex;not null" json:"title"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AdminConfigDistribution controls how one server's admin config file is
// published: by API slug, by local file, or both. One record per server.
type AdminConfigDistribution struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ServerID  uint      `gorm:"uniqueIndex;not null" json:"server_id"`
	Server    Server    `gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE" json:"server,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Distribution `gorm:"embedded"`
}

func (d *AdminConfigDistribution) BeforeSave(*gorm.DB) error {
	return d.Distribution.validate()
}
