package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/audit"
	"github.com/squadops/squadconf/internal/models"
)

// GrantRequest is the validated payload of one role-webhook call.
type GrantRequest struct {
	SteamID          int64
	Name             string
	Comment          string
	DurationUntilEnd *int
	// RequestInfo is caller metadata recorded with the audit entry.
	RequestInfo string
}

// ApplyRoleWebhook converts one webhook call into privilege records: it
// upserts the privileged user, extends matching existing grants where the
// webhook asks for that, creates new grants on the remaining servers and
// writes one audit entry. The whole read-modify-write runs in a single
// transaction so concurrent calls for the same steam_id serialize at the
// storage layer.
func ApplyRoleWebhook(db *gorm.DB, webhook *models.RoleWebhook, req GrantRequest) error {
	now := time.Now().UTC()
	duration := effectiveDuration(webhook, req.DurationUntilEnd)
	dateOfEnd := endFromDuration(webhook.UnitOfDuration, duration, now)

	return db.Transaction(func(tx *gorm.DB) error {
		if err := loadWebhookAssociations(tx, webhook); err != nil {
			return err
		}

		priv, created, err := upsertPrivileged(tx, webhook, req, dateOfEnd)
		if err != nil {
			return err
		}
		if !created && webhook.ActiveAndIncreaseCommonDateOfEnd {
			if err := activateAndRaise(tx, priv, dateOfEnd); err != nil {
				return err
			}
		}

		reusable := map[uint]*models.ServerPrivileged{}
		if webhook.TryToIncreaseExistingRecord {
			reusable, err = grantsWithExactRoles(tx, priv.ID, webhook)
			if err != nil {
				return err
			}
		}

		extended, createdGrants := 0, 0
		for i := range webhook.Servers {
			server := &webhook.Servers[i]
			if grant, ok := reusable[server.ID]; ok {
				if err := extendGrant(tx, grant, webhook.UnitOfDuration, duration); err != nil {
					return err
				}
				extended++
				continue
			}

			grant := models.ServerPrivileged{
				ServerID:     server.ID,
				PrivilegedID: priv.ID,
				IsActive:     true,
				DateOfEnd:    dateOfEnd,
				Comment:      req.Comment,
			}
			if err := tx.Create(&grant).Error; err != nil {
				return err
			}
			if err := tx.Model(&grant).Association("Roles").Append(webhook.Roles); err != nil {
				return err
			}
			createdGrants++
		}

		message := fmt.Sprintf(
			"granted roles to %s (%d): created %d grants, extended %d grants",
			req.Name, req.SteamID, createdGrants, extended,
		)
		return audit.Log(tx, webhook, models.LogLevelInfo, message, req.RequestInfo)
	})
}

// effectiveDuration picks the request-supplied duration only when the
// webhook allows it; otherwise the webhook's default wins. nil means no
// expiry. A supplied 0 counts as unsupplied, the same as an absent field.
func effectiveDuration(webhook *models.RoleWebhook, requested *int) *int {
	if webhook.AllowCustomDurationUntilEnd && requested != nil && *requested != 0 {
		return requested
	}
	return webhook.DurationUntilEnd
}

func endFromDuration(unit models.DurationUnit, duration *int, now time.Time) *time.Time {
	if duration == nil {
		return nil
	}
	end := now.Add(unit.AsDuration(*duration))
	return &end
}

func loadWebhookAssociations(tx *gorm.DB, webhook *models.RoleWebhook) error {
	if err := tx.Model(webhook).Association("Servers").Find(&webhook.Servers); err != nil {
		return err
	}
	return tx.Model(webhook).Association("Roles").Find(&webhook.Roles)
}

func upsertPrivileged(tx *gorm.DB, webhook *models.RoleWebhook, req GrantRequest, dateOfEnd *time.Time) (*models.Privileged, bool, error) {
	var priv models.Privileged
	err := tx.Where("steam_id = ?", req.SteamID).First(&priv).Error
	if err == nil {
		return &priv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	priv = models.Privileged{
		SteamID:     req.SteamID,
		Name:        req.Name,
		Description: req.Comment,
		IsActive:    true,
	}
	if webhook.SetCommonDateOfEnd {
		priv.DateOfEnd = dateOfEnd
	}
	if err := tx.Create(&priv).Error; err != nil {
		return nil, false, err
	}
	return &priv, true, nil
}

// activateAndRaise reactivates the user and raises the global date of
// end monotonically: an existing nil (no expiry) is already maximal and
// is never lowered, while a new nil overwrites any finite date.
func activateAndRaise(tx *gorm.DB, priv *models.Privileged, newEnd *time.Time) error {
	updates := map[string]any{}
	if !priv.IsActive {
		updates["is_active"] = true
		priv.IsActive = true
	}

	switch {
	case priv.DateOfEnd == nil:
		// no expiry already, nothing to raise
	case newEnd == nil:
		updates["date_of_end"] = nil
		priv.DateOfEnd = nil
	case priv.DateOfEnd.Before(*newEnd):
		updates["date_of_end"] = *newEnd
		priv.DateOfEnd = newEnd
	}

	if len(updates) == 0 {
		return nil
	}
	return tx.Model(priv).Updates(updates).Error
}

// grantsWithExactRoles finds, per webhook server, one active grant whose
// role set equals the webhook's role set exactly. When several rows
// match on a server, the one expiring last wins, with "no expiry" ranked
// above every finite date.
func grantsWithExactRoles(tx *gorm.DB, privilegedID uint, webhook *models.RoleWebhook) (map[uint]*models.ServerPrivileged, error) {
	serverIDs := make([]uint, len(webhook.Servers))
	for i, s := range webhook.Servers {
		serverIDs[i] = s.ID
	}

	wanted := make(map[uint]struct{}, len(webhook.Roles))
	for _, r := range webhook.Roles {
		wanted[r.ID] = struct{}{}
	}

	var candidates []models.ServerPrivileged
	err := tx.Preload("Roles").
		Where("privileged_id = ? AND server_id IN ? AND is_active = ?", privilegedID, serverIDs, true).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	// Rank no-expiry grants first, then later dates first.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].DateOfEnd, candidates[j].DateOfEnd
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.After(*b)
		}
	})

	matches := make(map[uint]*models.ServerPrivileged)
	for i := range candidates {
		grant := &candidates[i]
		if _, seen := matches[grant.ServerID]; seen {
			continue
		}
		if !sameRoleSet(grant.RoleIDSet(), wanted) {
			continue
		}
		matches[grant.ServerID] = grant
	}
	return matches, nil
}

func sameRoleSet(a, b map[uint]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// extendGrant adds the new duration on top of the grant's current date
// of end. A grant that already never expires is left untouched; a nil
// duration upgrades the grant to never-expiring.
func extendGrant(tx *gorm.DB, grant *models.ServerPrivileged, unit models.DurationUnit, duration *int) error {
	if grant.DateOfEnd == nil {
		return nil
	}
	if duration == nil {
		grant.DateOfEnd = nil
		return tx.Model(grant).Update("date_of_end", nil).Error
	}
	extended := grant.DateOfEnd.Add(unit.AsDuration(*duration))
	grant.DateOfEnd = &extended
	return tx.Model(grant).Update("date_of_end", extended).Error
}
