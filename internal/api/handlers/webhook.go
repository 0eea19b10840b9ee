package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/audit"
	"github.com/squadops/squadconf/internal/hmacsig"
	"github.com/squadops/squadconf/internal/models"
	"github.com/squadops/squadconf/internal/service"
)

type WebhookHandler struct {
	db           *gorm.DB
	maxDeviation time.Duration
}

func NewWebhookHandler(db *gorm.DB, maxDeviation time.Duration) *WebhookHandler {
	return &WebhookHandler{db: db, maxDeviation: maxDeviation}
}

type roleWebhookRequest struct {
	SteamID          int64  `json:"steam_id" binding:"required"`
	Name             string `json:"name" binding:"required,max=200"`
	Comment          string `json:"comment" binding:"required,max=200"`
	DurationUntilEnd *int   `json:"duration_until_end"`
}

// RoleWebhook godoc
// @Summary Grant a role to a player via a configured webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param token path string true "Webhook URL token"
// @Param request body roleWebhookRequest true "Grant request"
// @Success 200 {object} DetailResponse
// @Failure 400 {object} DetailResponse
// @Failure 403 {object} DetailResponse
// @Failure 404 {object} DetailResponse
// @Failure 500 {object} DetailResponse
// @Router /webhooks/roles/{token} [post]
func (h *WebhookHandler) RoleWebhook(c *gin.Context) {
	token := c.Param("token")

	var webhook models.RoleWebhook
	err := h.db.Preload("Servers").Preload("Roles").Where("url = ?", token).First(&webhook).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, DetailResponse{Detail: "Not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to fetch webhook"})
		return
	}

	if !webhook.IsActive {
		c.JSON(http.StatusForbidden, DetailResponse{Detail: "Webhook is disabled"})
		return
	}

	requestInfo := audit.RequestInfo(c.ClientIP(), c.Request.UserAgent())

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, DetailResponse{Detail: "Failed to read request body"})
		return
	}

	hmacCfg := hmacsig.Config{
		Active:       webhook.HMACIsActive,
		HashType:     webhook.HMACHashType,
		SecretKey:    webhook.HMACSecretKey,
		Header:       webhook.HMACHeader,
		HeaderRegex:  webhook.HMACHeaderRegex,
		Sender:       string(webhook.RequestSender),
		MaxDeviation: h.maxDeviation,
	}
	if err := hmacsig.Validate(c.Request.Header, body, hmacCfg, time.Now().UTC()); err != nil {
		audit.Log(h.db, &webhook, models.LogLevelWarning, err.Error(), requestInfo)
		c.JSON(http.StatusBadRequest, DetailResponse{Detail: err.Error()})
		return
	}

	var req roleWebhookRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		audit.Log(h.db, &webhook, models.LogLevelWarning, "invalid request body: "+err.Error(), requestInfo)
		c.JSON(http.StatusBadRequest, DetailResponse{Detail: err.Error()})
		return
	}

	grant := service.GrantRequest{
		SteamID:          req.SteamID,
		Name:             req.Name,
		Comment:          req.Comment,
		DurationUntilEnd: req.DurationUntilEnd,
		RequestInfo:      requestInfo,
	}
	if err := service.ApplyRoleWebhook(h.db, &webhook, grant); err != nil {
		audit.Log(h.db, &webhook, models.LogLevelError, err.Error(), requestInfo)
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to apply grant"})
		return
	}

	c.JSON(http.StatusOK, DetailResponse{Detail: "Created"})
}
