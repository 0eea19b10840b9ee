package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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

func setupRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	webhookHandler := NewWebhookHandler(db, 5*time.Minute)
	configHandler := NewConfigHandler(db)
	rotationHandler := NewRotationHandler(db)
	logHandler := NewWebhookLogHandler(db)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)
		v1.POST("/webhooks/roles/:token", webhookHandler.RoleWebhook)
		v1.GET("/configs/admins/:token", configHandler.AdminConfig)
		v1.GET("/rotations/:token/current", rotationHandler.Current)
		v1.GET("/rotations/:token/next", rotationHandler.Next)
		v1.GET("/rotations/:token/packs/:slug", rotationHandler.PackBySlug)
		v1.GET("/webhook-logs", logHandler.ListLogs)
		v1.GET("/webhook-logs/:id", logHandler.GetLog)
	}
	return r
}

func seedWebhook(t *testing.T, db *gorm.DB, mutate func(*models.RoleWebhook)) *models.RoleWebhook {
	t.Helper()
	server := models.Server{Title: "Server A", IsActive: true}
	if err := db.Create(&server).Error; err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	role := models.Role{Title: "Admin", IsActive: true}
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("failed to create role: %v", err)
	}

	five := 5
	webhook := &models.RoleWebhook{
		IsActive:           true,
		URL:                "test-token",
		Servers:            []models.Server{server},
		Roles:              []models.Role{role},
		UnitOfDuration:     models.DurationDays,
		DurationUntilEnd:   &five,
		SetCommonDateOfEnd: true,
	}
	if mutate != nil {
		mutate(webhook)
	}
	if err := db.Create(webhook).Error; err != nil {
		t.Fatalf("failed to create webhook: %v", err)
	}
	return webhook
}

func postJSON(r *gin.Engine, path, body string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	r := setupRouter(setupTestDB(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRoleWebhook_UnknownToken(t *testing.T) {
	r := setupRouter(setupTestDB(t))

	w := postJSON(r, "/api/v1/webhooks/roles/nope", `{"steam_id":76561198000000001,"name":"player"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRoleWebhook_Disabled(t *testing.T) {
	db := setupTestDB(t)
	seedWebhook(t, db, func(w *models.RoleWebhook) { w.IsActive = false })
	r := setupRouter(db)

	w := postJSON(r, "/api/v1/webhooks/roles/test-token", `{"steam_id":76561198000000001,"name":"player"}`, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRoleWebhook_InvalidBody(t *testing.T) {
	db := setupTestDB(t)
	seedWebhook(t, db, nil)
	r := setupRouter(db)

	w := postJSON(r, "/api/v1/webhooks/roles/test-token", `{"name":"player"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing steam_id, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(r, "/api/v1/webhooks/roles/test-token", `{"steam_id":76561198000000001,"name":"player"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing comment, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&models.WebhookLog{}).Where("level = ?", models.LogLevelWarning).Count(&count)
	if count != 2 {
		t.Errorf("expected the rejections to be logged, got %d warning entries", count)
	}
}

func TestRoleWebhook_Grants(t *testing.T) {
	db := setupTestDB(t)
	seedWebhook(t, db, nil)
	r := setupRouter(db)

	w := postJSON(r, "/api/v1/webhooks/roles/test-token", `{"steam_id":76561198000000001,"name":"player","comment":"vip"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["detail"] != "Created" {
		t.Errorf("detail = %q, want Created", resp["detail"])
	}

	var grant models.ServerPrivileged
	if err := db.Preload("Privileged").First(&grant).Error; err != nil {
		t.Fatalf("grant not created: %v", err)
	}
	if grant.Privileged.SteamID != 76561198000000001 {
		t.Errorf("grant steam id = %d", grant.Privileged.SteamID)
	}
}

func TestRoleWebhook_HMAC(t *testing.T) {
	db := setupTestDB(t)
	seedWebhook(t, db, func(w *models.RoleWebhook) {
		w.HMACConfig = models.HMACConfig{
			HMACIsActive:    true,
			HMACHashType:    "sha256",
			HMACSecretKey:   "topsecret",
			HMACHeader:      "X-Signature",
			HMACHeaderRegex: "[0-9a-f]{64}",
		}
	})
	r := setupRouter(db)

	body := `{"steam_id":76561198000000001,"name":"player","comment":"vip"}`

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte(body))
	signature := hex.EncodeToString(mac.Sum(nil))

	header := http.Header{"X-Signature": []string{signature}}
	w := postJSON(r, "/api/v1/webhooks/roles/test-token", body, header)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a valid signature, got %d: %s", w.Code, w.Body.String())
	}

	// Tampered body is rejected and logged.
	w = postJSON(r, "/api/v1/webhooks/roles/test-token", body+" ", header)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a tampered body, got %d", w.Code)
	}

	// Missing header is rejected.
	w = postJSON(r, "/api/v1/webhooks/roles/test-token", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing signature header, got %d", w.Code)
	}

	var count int64
	db.Model(&models.WebhookLog{}).Where("level = ?", models.LogLevelWarning).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 warning log entries, got %d", count)
	}
}

func TestAdminConfig(t *testing.T) {
	db := setupTestDB(t)
	server := models.Server{Title: "Server A", IsActive: true}
	if err := db.Create(&server).Error; err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	dist := models.AdminConfigDistribution{
		ServerID: server.ID,
		Distribution: models.Distribution{
			IsActive: true, Mode: models.DistributionAPI, URL: strPtrT("admins-token"),
		},
	}
	if err := db.Create(&dist).Error; err != nil {
		t.Fatalf("failed to create distribution: %v", err)
	}

	r := setupRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/configs/admins/admins-token", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q, want text/plain", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("// Server A")) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	// Unknown token.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/configs/admins/unknown", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdminConfig_InactiveDistribution(t *testing.T) {
	db := setupTestDB(t)
	server := models.Server{Title: "Server A", IsActive: true}
	if err := db.Create(&server).Error; err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	dist := models.AdminConfigDistribution{
		ServerID: server.ID,
		Distribution: models.Distribution{
			IsActive: false, Mode: models.DistributionAPI, URL: strPtrT("admins-token"),
		},
	}
	if err := db.Create(&dist).Error; err != nil {
		t.Fatalf("failed to create distribution: %v", err)
	}

	r := setupRouter(db)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/configs/admins/admins-token", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRotationEndpoints(t *testing.T) {
	db := setupTestDB(t)

	rotation := models.Rotation{Title: "Weekly"}
	if err := db.Create(&rotation).Error; err != nil {
		t.Fatalf("failed to create rotation: %v", err)
	}
	layers := models.LayersPack{Title: "first", IsActive: true, Layers: "Narva_AAS_v1\n"}
	if err := db.Create(&layers).Error; err != nil {
		t.Fatalf("failed to create layers pack: %v", err)
	}
	one := uint(1)
	slug := "opening"
	rp := models.RotationLayersPack{RotationID: rotation.ID, PackID: layers.ID, QueueNumber: &one, Slug: &slug}
	if err := db.Create(&rp).Error; err != nil {
		t.Fatalf("failed to create rotation pack: %v", err)
	}
	dist := models.RotationDistribution{
		RotationID:      rotation.ID,
		LastQueueNumber: 1,
		Distribution: models.Distribution{
			IsActive: true, Mode: models.DistributionAPI, URL: strPtrT("rotation-token"),
		},
	}
	if err := db.Create(&dist).Error; err != nil {
		t.Fatalf("failed to create distribution: %v", err)
	}

	r := setupRouter(db)

	for _, path := range []string{
		"/api/v1/rotations/rotation-token/current",
		"/api/v1/rotations/rotation-token/next",
		"/api/v1/rotations/rotation-token/packs/opening",
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "Narva_AAS_v1") {
			t.Errorf("%s: unexpected body: %s", path, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/rotations/rotation-token/packs/missing", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown slug, got %d", w.Code)
	}
}

func TestWebhookLogs(t *testing.T) {
	db := setupTestDB(t)
	logs := []models.WebhookLog{
		{Message: "granted roles", Level: models.LogLevelInfo, SourceKind: models.LogSourceRoleWebhook, SourceID: 1},
		{Message: "hmac mismatch", Level: models.LogLevelWarning, SourceKind: models.LogSourceRoleWebhook, SourceID: 1},
	}
	for i := range logs {
		if err := db.Create(&logs[i]).Error; err != nil {
			t.Fatalf("failed to seed log: %v", err)
		}
	}

	r := setupRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/webhook-logs?level=warning", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []models.WebhookLog
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 1 || list[0].Message != "hmac mismatch" {
		t.Errorf("unexpected filtered list: %+v", list)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/webhook-logs/999", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown id, got %d", w.Code)
	}
}

func strPtrT(v string) *string { return &v }
