// Package audit writes the append-only webhook log: one row per
// noteworthy event while handling a webhook call or an expiry sweep.
package audit

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/models"
)

// Log records an audit entry for the given webhook config. The webhook
// snapshot is rendered at write time so the log stays meaningful after
// the config changes.
func Log(db *gorm.DB, webhook *models.RoleWebhook, level, message, requestInfo string) error {
	entry := models.WebhookLog{
		Message:     message,
		Level:       level,
		WebhookInfo: WebhookInfo(webhook),
		RequestInfo: requestInfo,
		SourceKind:  models.LogSourceRoleWebhook,
		SourceID:    webhook.ID,
	}
	return db.Create(&entry).Error
}

// WebhookInfo renders a field-per-line snapshot of the webhook config,
// the text stored alongside every log entry.
func WebhookInfo(w *models.RoleWebhook) string {
	servers := make([]string, len(w.Servers))
	for i, s := range w.Servers {
		servers[i] = s.Title
	}
	roles := make([]string, len(w.Roles))
	for i, r := range w.Roles {
		roles[i] = r.Title
	}

	duration := "none"
	if w.DurationUntilEnd != nil {
		duration = fmt.Sprintf("%d %s", *w.DurationUntilEnd, w.UnitOfDuration)
	}

	lines := []string{
		fmt.Sprintf("id: %d", w.ID),
		fmt.Sprintf("description: %s", w.Description),
		fmt.Sprintf("url: %s", w.URL),
		fmt.Sprintf("servers: %s", strings.Join(servers, ", ")),
		fmt.Sprintf("roles: %s", strings.Join(roles, ", ")),
		fmt.Sprintf("default duration: %s", duration),
		fmt.Sprintf("allow custom duration: %t", w.AllowCustomDurationUntilEnd),
		fmt.Sprintf("increase common date of end: %t", w.ActiveAndIncreaseCommonDateOfEnd),
		fmt.Sprintf("try to increase existing record: %t", w.TryToIncreaseExistingRecord),
		fmt.Sprintf("hmac active: %t", w.HMACIsActive),
	}
	return strings.Join(lines, "\n")
}

// RequestInfo renders caller metadata for a log entry.
func RequestInfo(clientIP, userAgent string) string {
	return fmt.Sprintf("IP: %s\nUser-agent: %s", clientIP, userAgent)
}
