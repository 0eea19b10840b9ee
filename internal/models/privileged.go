package models

import "time"

// Privileged is a user identified by a 64-bit Steam ID who holds (or held)
// admin roles on one or more servers. DateOfEnd, when set, time-boxes all
// of the user's access; the expiry sweep deactivates the user once it
// passes.
type Privileged struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	SteamID      int64      `gorm:"uniqueIndex;not null" json:"steam_id"`
	Name         string     `gorm:"not null" json:"name"`
	Description  string     `json:"description"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	DateOfEnd    *time.Time `json:"date_of_end,omitempty"`
	CreationDate time.Time  `gorm:"autoCreateTime" json:"creation_date"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName avoids the awkward pluralization of "privileged".
func (Privileged) TableName() string { return "privileged_users" }

// ServerPrivileged is one grant: a set of roles held by one privileged
// user on one server, optionally time-boxed. A (server, user) pair may
// accumulate several grant rows over time; the grant engine, not the
// schema, keeps them deduplicated.
type ServerPrivileged struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	ServerID     uint       `gorm:"not null;index" json:"server_id"`
	Server       Server     `gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE" json:"server,omitempty"`
	PrivilegedID uint       `gorm:"not null;index" json:"privileged_id"`
	Privileged   Privileged `gorm:"foreignKey:PrivilegedID;constraint:OnDelete:CASCADE" json:"privileged,omitempty"`
	Roles        []Role     `gorm:"many2many:server_privileged_roles" json:"roles,omitempty"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	DateOfEnd    *time.Time `json:"date_of_end,omitempty"`
	Comment      string     `gorm:"size:200" json:"comment"`
	CreationDate time.Time  `gorm:"autoCreateTime" json:"creation_date"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (ServerPrivileged) TableName() string { return "server_privileged" }

// RoleIDSet returns the grant's role IDs as a set, used by the grant
// engine for exact role-set comparison.
func (sp *ServerPrivileged) RoleIDSet() map[uint]struct{} {
	set := make(map[uint]struct{}, len(sp.Roles))
	for _, role := range sp.Roles {
		set[role.ID] = struct{}{}
	}
	return set
}
