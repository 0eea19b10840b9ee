package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/models"
	"github.com/squadops/squadconf/internal/notify"
)

// The three expiry sweeps below share one shape: select active rows
// whose date_of_end has passed, flip is_active, then notify once per
// affected row. Notifications go out after the database write so a slow
// or failing sink never stalls or reverts the deactivation. Re-running
// a sweep with no newly-expired rows is a no-op.

// DeactivateExpiredGrants expires per-server grants.
func DeactivateExpiredGrants(ctx context.Context, db *gorm.DB, notifier notify.Notifier) error {
	now := time.Now().UTC()

	var grants []models.ServerPrivileged
	err := db.Preload("Server").Preload("Privileged").Preload("Roles").
		Where("is_active = ? AND date_of_end IS NOT NULL AND date_of_end < ?", true, now).
		Find(&grants).Error
	if err != nil {
		return fmt.Errorf("select expired grants: %w", err)
	}
	if len(grants) == 0 {
		return nil
	}

	messages := make([]string, 0, len(grants))
	for i := range grants {
		grant := &grants[i]
		if err := db.Model(grant).Update("is_active", false).Error; err != nil {
			slog.Error("deactivate expired grant", "grant_id", grant.ID, "error", err)
			continue
		}
		messages = append(messages, fmt.Sprintf(
			"%s - %d\nexpired roles on server:\n%s - %s",
			grant.Privileged.Name, grant.Privileged.SteamID,
			grant.Server.Title, roleTitles(grant.Roles),
		))
	}

	slog.Info("expired grants deactivated", "count", len(messages))
	notify.SendAll(ctx, notifier, messages)
	return nil
}

// DeactivateExpiredPrivileged expires whole users whose global date of
// end has passed.
func DeactivateExpiredPrivileged(ctx context.Context, db *gorm.DB, notifier notify.Notifier) error {
	now := time.Now().UTC()

	var users []models.Privileged
	err := db.
		Where("is_active = ? AND date_of_end IS NOT NULL AND date_of_end < ?", true, now).
		Find(&users).Error
	if err != nil {
		return fmt.Errorf("select expired privileged users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	messages := make([]string, 0, len(users))
	for i := range users {
		user := &users[i]
		if err := db.Model(user).Update("is_active", false).Error; err != nil {
			slog.Error("deactivate expired privileged user", "privileged_id", user.ID, "error", err)
			continue
		}

		var grants []models.ServerPrivileged
		if err := db.Preload("Server").Preload("Roles").
			Where("privileged_id = ?", user.ID).Find(&grants).Error; err != nil {
			slog.Error("load grants for expired user", "privileged_id", user.ID, "error", err)
		}
		perServer := make([]string, len(grants))
		for j := range grants {
			perServer[j] = fmt.Sprintf("%s - %s;", grants[j].Server.Title, roleTitles(grants[j].Roles))
		}

		messages = append(messages, fmt.Sprintf(
			"%s - %d\nall privileges expired:\n%s",
			user.Name, user.SteamID, strings.Join(perServer, " "),
		))
	}

	slog.Info("expired privileged users deactivated", "count", len(messages))
	notify.SendAll(ctx, notifier, messages)
	return nil
}

// DeactivateExpiredPacks expires bulk access-list packs.
func DeactivateExpiredPacks(ctx context.Context, db *gorm.DB, notifier notify.Notifier) error {
	now := time.Now().UTC()

	var packs []models.ServerPrivilegedPack
	err := db.Preload("Servers").Preload("Roles").
		Where("is_active = ? AND date_of_end IS NOT NULL AND date_of_end < ?", true, now).
		Find(&packs).Error
	if err != nil {
		return fmt.Errorf("select expired packs: %w", err)
	}
	if len(packs) == 0 {
		return nil
	}

	messages := make([]string, 0, len(packs))
	for i := range packs {
		pack := &packs[i]
		if err := db.Model(pack).Update("is_active", false).Error; err != nil {
			slog.Error("deactivate expired pack", "pack_id", pack.ID, "error", err)
			continue
		}

		servers := make([]string, len(pack.Servers))
		for j, s := range pack.Servers {
			servers[j] = s.Title
		}
		messages = append(messages, fmt.Sprintf(
			"pack %s\nexpired roles on servers:\n%s - %s",
			pack.Title, strings.Join(servers, ", "), roleTitles(pack.Roles),
		))
	}

	slog.Info("expired packs deactivated", "count", len(messages))
	notify.SendAll(ctx, notifier, messages)
	return nil
}

func roleTitles(roles []models.Role) string {
	titles := make([]string, len(roles))
	for i, r := range roles {
		titles[i] = r.Title
	}
	return strings.Join(titles, ", ")
}
