package service

import (
	"testing"
	"time"

	"github.com/squadops/squadconf/internal/models"
)

// within reports whether got is inside tolerance of want.
func within(got, want time.Time, tolerance time.Duration) bool {
	diff := got.Sub(want)
	return diff > -tolerance && diff < tolerance
}

func TestApplyRoleWebhook_CreatesPrivilegedAndGrant(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick", "ban")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, nil)

	req := GrantRequest{SteamID: 76561198000000001, Name: "player", Comment: "donation"}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var priv models.Privileged
	if err := db.Where("steam_id = ?", req.SteamID).First(&priv).Error; err != nil {
		t.Fatalf("privileged user not created: %v", err)
	}
	if !priv.IsActive {
		t.Error("expected new privileged user to be active")
	}
	if priv.DateOfEnd == nil {
		t.Fatal("expected common date of end to be set")
	}
	wantEnd := time.Now().UTC().Add(5 * 24 * time.Hour)
	if !within(*priv.DateOfEnd, wantEnd, time.Minute) {
		t.Errorf("common date of end = %v, want about %v", priv.DateOfEnd, wantEnd)
	}

	var grants []models.ServerPrivileged
	if err := db.Preload("Roles").Where("privileged_id = ?", priv.ID).Find(&grants).Error; err != nil {
		t.Fatalf("failed to load grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(grants))
	}
	if grants[0].ServerID != server.ID {
		t.Errorf("grant server = %d, want %d", grants[0].ServerID, server.ID)
	}
	if len(grants[0].Roles) != 1 || grants[0].Roles[0].ID != role.ID {
		t.Errorf("grant roles = %v, want role %d", grants[0].Roles, role.ID)
	}

	var logs []models.WebhookLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("failed to load logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Level != models.LogLevelInfo {
		t.Errorf("expected one info log entry, got %v", logs)
	}
}

func TestApplyRoleWebhook_CustomDurationIgnoredWhenNotAllowed(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, nil)

	req := GrantRequest{SteamID: 76561198000000002, Name: "player", DurationUntilEnd: intPtr(30)}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var grant models.ServerPrivileged
	if err := db.First(&grant).Error; err != nil {
		t.Fatalf("grant not created: %v", err)
	}
	if grant.DateOfEnd == nil {
		t.Fatal("expected a finite date of end")
	}
	wantEnd := time.Now().UTC().Add(5 * 24 * time.Hour)
	if !within(*grant.DateOfEnd, wantEnd, time.Minute) {
		t.Errorf("date of end = %v, want the webhook's 5 days, not the requested 30", grant.DateOfEnd)
	}
}

func TestApplyRoleWebhook_CustomDurationHonoredWhenAllowed(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, func(w *models.RoleWebhook) {
		w.UnitOfDuration = models.DurationHours
		w.AllowCustomDurationUntilEnd = true
	})

	req := GrantRequest{SteamID: 76561198000000003, Name: "player", DurationUntilEnd: intPtr(2)}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var grant models.ServerPrivileged
	if err := db.First(&grant).Error; err != nil {
		t.Fatalf("grant not created: %v", err)
	}
	wantEnd := time.Now().UTC().Add(2 * time.Hour)
	if grant.DateOfEnd == nil || !within(*grant.DateOfEnd, wantEnd, time.Minute) {
		t.Errorf("date of end = %v, want about %v", grant.DateOfEnd, wantEnd)
	}
}

func TestApplyRoleWebhook_ZeroDurationFallsBackToDefault(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, func(w *models.RoleWebhook) {
		w.AllowCustomDurationUntilEnd = true
	})

	req := GrantRequest{SteamID: 76561198000000009, Name: "player", DurationUntilEnd: intPtr(0)}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var grant models.ServerPrivileged
	if err := db.First(&grant).Error; err != nil {
		t.Fatalf("grant not created: %v", err)
	}
	wantEnd := time.Now().UTC().Add(5 * 24 * time.Hour)
	if grant.DateOfEnd == nil || !within(*grant.DateOfEnd, wantEnd, time.Minute) {
		t.Errorf("date of end = %v, want the webhook's 5 day default", grant.DateOfEnd)
	}
}

func TestApplyRoleWebhook_CommonDateOfEndNeverLowered(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, nil)

	farFuture := time.Now().UTC().Add(365 * 24 * time.Hour)
	priv := models.Privileged{SteamID: 76561198000000004, Name: "veteran", IsActive: false, DateOfEnd: timePtr(farFuture)}
	if err := db.Create(&priv).Error; err != nil {
		t.Fatalf("failed to seed privileged user: %v", err)
	}

	req := GrantRequest{SteamID: priv.SteamID, Name: "veteran"}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var got models.Privileged
	if err := db.First(&got, priv.ID).Error; err != nil {
		t.Fatalf("failed to reload privileged user: %v", err)
	}
	if !got.IsActive {
		t.Error("expected inactive user to be reactivated")
	}
	if got.DateOfEnd == nil || !within(*got.DateOfEnd, farFuture, time.Second) {
		t.Errorf("date of end = %v, want the original %v kept", got.DateOfEnd, farFuture)
	}
}

func TestApplyRoleWebhook_NoExpiryWins(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, func(w *models.RoleWebhook) {
		w.DurationUntilEnd = nil
	})

	soon := time.Now().UTC().Add(24 * time.Hour)
	priv := models.Privileged{SteamID: 76561198000000005, Name: "player", IsActive: true, DateOfEnd: timePtr(soon)}
	if err := db.Create(&priv).Error; err != nil {
		t.Fatalf("failed to seed privileged user: %v", err)
	}

	req := GrantRequest{SteamID: priv.SteamID, Name: "player"}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var got models.Privileged
	if err := db.First(&got, priv.ID).Error; err != nil {
		t.Fatalf("failed to reload privileged user: %v", err)
	}
	if got.DateOfEnd != nil {
		t.Errorf("date of end = %v, want nil (no expiry overwrites a finite date)", got.DateOfEnd)
	}
}

func TestApplyRoleWebhook_ExtendsMatchingGrant(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, func(w *models.RoleWebhook) {
		w.TryToIncreaseExistingRecord = true
	})

	priv := models.Privileged{SteamID: 76561198000000006, Name: "player", IsActive: true}
	if err := db.Create(&priv).Error; err != nil {
		t.Fatalf("failed to seed privileged user: %v", err)
	}
	existingEnd := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	grant := models.ServerPrivileged{
		ServerID:     server.ID,
		PrivilegedID: priv.ID,
		IsActive:     true,
		DateOfEnd:    timePtr(existingEnd),
		Roles:        []models.Role{*role},
	}
	if err := db.Create(&grant).Error; err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}

	req := GrantRequest{SteamID: priv.SteamID, Name: "player"}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var grants []models.ServerPrivileged
	if err := db.Where("privileged_id = ?", priv.ID).Find(&grants).Error; err != nil {
		t.Fatalf("failed to load grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("expected the existing grant to be reused, got %d rows", len(grants))
	}
	wantEnd := existingEnd.Add(5 * 24 * time.Hour)
	if grants[0].DateOfEnd == nil || !within(*grants[0].DateOfEnd, wantEnd, time.Second) {
		t.Errorf("date of end = %v, want %v (existing end plus 5 days)", grants[0].DateOfEnd, wantEnd)
	}
}

func TestApplyRoleWebhook_DifferentRoleSetGetsNewGrant(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	admin := createRole(t, db, "Admin", "kick")
	cameraman := createRole(t, db, "Cameraman", "cameraman")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*admin}, func(w *models.RoleWebhook) {
		w.TryToIncreaseExistingRecord = true
	})

	priv := models.Privileged{SteamID: 76561198000000007, Name: "player", IsActive: true}
	if err := db.Create(&priv).Error; err != nil {
		t.Fatalf("failed to seed privileged user: %v", err)
	}
	grant := models.ServerPrivileged{
		ServerID:     server.ID,
		PrivilegedID: priv.ID,
		IsActive:     true,
		Roles:        []models.Role{*cameraman},
	}
	if err := db.Create(&grant).Error; err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}

	req := GrantRequest{SteamID: priv.SteamID, Name: "player"}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.ServerPrivileged{}).Where("privileged_id = ?", priv.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count grants: %v", err)
	}
	if count != 2 {
		t.Errorf("expected a second grant for the different role set, got %d rows", count)
	}
}

func TestApplyRoleWebhook_NeverExpiringGrantLeftAlone(t *testing.T) {
	db := setupTestDB(t)
	server := createServer(t, db, "Server A")
	role := createRole(t, db, "Admin", "kick")
	webhook := createWebhook(t, db, []models.Server{*server}, []models.Role{*role}, func(w *models.RoleWebhook) {
		w.TryToIncreaseExistingRecord = true
	})

	priv := models.Privileged{SteamID: 76561198000000008, Name: "player", IsActive: true}
	if err := db.Create(&priv).Error; err != nil {
		t.Fatalf("failed to seed privileged user: %v", err)
	}
	grant := models.ServerPrivileged{
		ServerID:     server.ID,
		PrivilegedID: priv.ID,
		IsActive:     true,
		Roles:        []models.Role{*role},
	}
	if err := db.Create(&grant).Error; err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}

	req := GrantRequest{SteamID: priv.SteamID, Name: "player"}
	if err := ApplyRoleWebhook(db, webhook, req); err != nil {
		t.Fatalf("ApplyRoleWebhook failed: %v", err)
	}

	var got models.ServerPrivileged
	if err := db.First(&got, grant.ID).Error; err != nil {
		t.Fatalf("failed to reload grant: %v", err)
	}
	if got.DateOfEnd != nil {
		t.Errorf("date of end = %v, want nil (never-expiring grant must stay that way)", got.DateOfEnd)
	}
}
