package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/models"
)

// DateTimeLayout is the timestamp format embedded in generated configs.
const DateTimeLayout = "2006-01-02 15:04:05"

// GenerateServerConfig renders the admin config for one server from the
// grants and packs currently valid at now. Pure read: safe to call
// concurrently and repeatedly; output is byte-identical for unchanged
// data modulo the embedded timestamp.
func GenerateServerConfig(db *gorm.DB, server *models.Server, now time.Time) (string, error) {
	if !server.IsActive {
		return fmt.Sprintf("// %s DISABLED! %s", server.Title, now.Format(DateTimeLayout)), nil
	}

	var grants []models.ServerPrivileged
	err := db.Preload("Privileged").Preload("Roles", func(db *gorm.DB) *gorm.DB {
		return db.Order("roles.id")
	}).Preload("Roles.Permissions").
		Joins("JOIN privileged_users pu ON pu.id = server_privileged.privileged_id").
		Where("server_privileged.server_id = ? AND server_privileged.is_active = ?", server.ID, true).
		Where("server_privileged.date_of_end IS NULL OR server_privileged.date_of_end >= ?", now).
		Where("pu.is_active = ?", true).
		Where("pu.date_of_end IS NULL OR pu.date_of_end >= ?", now).
		Order("server_privileged.id").
		Find(&grants).Error
	if err != nil {
		return "", fmt.Errorf("select valid grants: %w", err)
	}

	var packs []models.ServerPrivilegedPack
	err = db.Preload("Roles", func(db *gorm.DB) *gorm.DB {
		return db.Order("roles.id")
	}).Preload("Roles.Permissions").
		Joins("JOIN server_privileged_pack_servers link ON link.server_privileged_pack_id = server_privileged_packs.id").
		Where("link.server_id = ?", server.ID).
		Where("server_privileged_packs.is_active = ?", true).
		Where("server_privileged_packs.date_of_end IS NULL OR server_privileged_packs.date_of_end >= ?", now).
		Order("server_privileged_packs.id").
		Find(&packs).Error
	if err != nil {
		return "", fmt.Errorf("select valid packs: %w", err)
	}

	// Roles appear in order of first encounter; members keep their
	// encounter order too, named users before pack-sourced IDs.
	var roleOrder []uint
	groupLines := make(map[uint]string)
	roleTitle := make(map[uint]string)
	members := make(map[uint][]string)

	registerRole := func(role *models.Role) bool {
		if !role.IsActive {
			return false
		}
		if _, seen := groupLines[role.ID]; !seen {
			roleOrder = append(roleOrder, role.ID)
			groupLines[role.ID] = fmt.Sprintf("Group=%s:%s", role.Title, role.PermissionList())
			roleTitle[role.ID] = role.Title
		}
		return true
	}

	for i := range grants {
		grant := &grants[i]
		for j := range grant.Roles {
			role := &grant.Roles[j]
			if !registerRole(role) {
				continue
			}
			members[role.ID] = append(members[role.ID], fmt.Sprintf(
				"Admin=%d:%s // %s", grant.Privileged.SteamID, role.Title, grant.Privileged.Name,
			))
		}
	}

	for i := range packs {
		pack := &packs[i]
		steamIDs := pack.ParsedSteamIDs()
		for j := range pack.Roles {
			role := &pack.Roles[j]
			if !registerRole(role) {
				continue
			}
			for _, id := range steamIDs {
				members[role.ID] = append(members[role.ID], fmt.Sprintf(
					"Admin=%s:%s // %s", id, role.Title, pack.Title,
				))
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// %s %s\n\n", server.Title, now.Format(DateTimeLayout))
	b.WriteString("// Roles\n")
	for _, roleID := range roleOrder {
		b.WriteString(groupLines[roleID])
		b.WriteString("\n")
	}
	for _, roleID := range roleOrder {
		fmt.Fprintf(&b, "\n// %s\n", roleTitle[roleID])
		for _, line := range members[roleID] {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

// WriteLocalServerConfigs renders every server whose distribution mode
// includes a local file into dir. One broken entry does not abort its
// siblings.
func WriteLocalServerConfigs(db *gorm.DB, dir string) error {
	var distributions []models.AdminConfigDistribution
	err := db.Preload("Server").
		Where("is_active = ? AND mode IN ?", true,
			[]models.DistributionMode{models.DistributionLocal, models.DistributionAPIAndLocal}).
		Find(&distributions).Error
	if err != nil {
		return fmt.Errorf("select local admin config distributions: %w", err)
	}
	if len(distributions) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create admin config dir: %w", err)
	}

	now := time.Now().UTC()
	for i := range distributions {
		dist := &distributions[i]
		content, err := GenerateServerConfig(db, &dist.Server, now)
		if err != nil {
			slog.Error("render admin config", "server", dist.Server.Title, "error", err)
			continue
		}
		path := filepath.Join(dir, *dist.LocalFilename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			slog.Error("write admin config", "path", path, "error", err)
		}
	}
	return nil
}
