package models

import (
	"strings"
	"time"
)

// Role bundles permissions under a name that can be granted to privileged
// users on a server. Deactivating a role removes it from generated configs
// without touching the grants that reference it.
type Role struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	Title       string       `gorm:"uniqueIndex;not null" json:"title"`
	IsActive    bool         `gorm:"not null" json:"is_active"`
	Description string       `json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PermissionList returns the role's permission titles joined with commas,
// in association order. This is the value after the colon in a
// "Group=<role>:<permissions>" config line.
func (r *Role) PermissionList() string {
	titles := make([]string, len(r.Permissions))
	for i, perm := range r.Permissions {
		titles[i] = perm.Title
	}
	return strings.Join(titles, ",")
}
