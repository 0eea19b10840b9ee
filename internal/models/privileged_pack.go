package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/textspec"
)

// ServerPrivilegedPack grants a role set to a raw list of Steam IDs on a
// set of servers, without creating Privileged rows. The ID list is kept
// as the admin typed it and validated on every save.
type ServerPrivilegedPack struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Title        string     `gorm:"uniqueIndex;not null" json:"title"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	SteamIDs     string     `gorm:"type:text" json:"steam_ids"`
	Servers      []Server   `gorm:"many2many:server_privileged_pack_servers" json:"servers,omitempty"`
	Roles        []Role     `gorm:"many2many:server_privileged_pack_roles" json:"roles,omitempty"`
	MaxIDs       int        `gorm:"not null;default:0" json:"max_ids"`
	Moderators   string     `json:"moderators"`
	DateOfEnd    *time.Time `json:"date_of_end,omitempty"`
	Comment      string     `gorm:"size:200" json:"comment"`
	CreationDate time.Time  `gorm:"autoCreateTime" json:"creation_date"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ParsedSteamIDs returns the well-formed Steam IDs from the pack's raw
// text, in order of appearance.
func (p *ServerPrivilegedPack) ParsedSteamIDs() []string {
	return textspec.Values(textspec.SteamIDs.Parse(p.SteamIDs), textspec.KindSteamID)
}

func (p *ServerPrivilegedPack) BeforeSave(*gorm.DB) error {
	nodes := textspec.SteamIDs.Parse(p.SteamIDs)
	if errs := textspec.SteamIDs.CheckErrors(nodes); len(errs) > 0 {
		return &ConfigurationError{Field: "steam_ids", Message: strings.Join(errs, "; ")}
	}

	if p.IsActive && p.MaxIDs > 0 {
		if n := len(textspec.Values(nodes, textspec.KindSteamID)); n > p.MaxIDs {
			return &ConfigurationError{
				Field:   "steam_ids",
				Message: fmt.Sprintf("pack holds %d ids, limit is %d", n, p.MaxIDs),
			}
		}
	}

	return nil
}
