package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/squadops/squadconf/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Server{},
		&models.Permission{},
		&models.Role{},
		&models.Privileged{},
		&models.ServerPrivileged{},
		&models.ServerPrivilegedPack{},
		&models.RoleWebhook{},
		&models.WebhookLog{},
		&models.LayersPack{},
		&models.Rotation{},
		&models.RotationLayersPack{},
		&models.RotationDistribution{},
		&models.AdminConfigDistribution{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func createServer(t *testing.T, db *gorm.DB, title string) *models.Server {
	t.Helper()
	server := &models.Server{Title: title, IsActive: true}
	if err := db.Create(server).Error; err != nil {
		t.Fatalf("failed to create server %s: %v", title, err)
	}
	return server
}

func createRole(t *testing.T, db *gorm.DB, title string, permissions ...string) *models.Role {
	t.Helper()
	role := &models.Role{Title: title, IsActive: true}
	for _, p := range permissions {
		var perm models.Permission
		if err := db.Where("title = ?", p).FirstOrCreate(&perm, models.Permission{Title: p}).Error; err != nil {
			t.Fatalf("failed to create permission %s: %v", p, err)
		}
		role.Permissions = append(role.Permissions, perm)
	}
	if err := db.Create(role).Error; err != nil {
		t.Fatalf("failed to create role %s: %v", title, err)
	}
	return role
}

func createWebhook(t *testing.T, db *gorm.DB, servers []models.Server, roles []models.Role, mutate func(*models.RoleWebhook)) *models.RoleWebhook {
	t.Helper()
	five := 5
	webhook := &models.RoleWebhook{
		IsActive:                         true,
		Servers:                          servers,
		Roles:                            roles,
		UnitOfDuration:                   models.DurationDays,
		DurationUntilEnd:                 &five,
		ActiveAndIncreaseCommonDateOfEnd: true,
		SetCommonDateOfEnd:               true,
	}
	if mutate != nil {
		mutate(webhook)
	}
	if err := db.Create(webhook).Error; err != nil {
		t.Fatalf("failed to create webhook: %v", err)
	}
	return webhook
}

func timePtr(v time.Time) *time.Time { return &v }

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

func strPtr(v string) *string { return &v }
