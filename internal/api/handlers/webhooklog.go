package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/models"
)

const (
	defaultLogPageSize = 50
	maxLogPageSize     = 500
)

type WebhookLogHandler struct {
	db *gorm.DB
}

func NewWebhookLogHandler(db *gorm.DB) *WebhookLogHandler {
	return &WebhookLogHandler{db: db}
}

// ListLogs godoc
// @Summary List webhook audit log entries, newest first
// @Tags webhook-logs
// @Produce json
// @Param level query string false "Filter by level (info, warning, error)"
// @Param limit query int false "Page size (default 50, max 500)"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.WebhookLog
// @Failure 500 {object} ErrorResponse
// @Router /webhook-logs [get]
func (h *WebhookLogHandler) ListLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLogPageSize)))
	if err != nil || limit < 1 {
		limit = defaultLogPageSize
	}
	if limit > maxLogPageSize {
		limit = maxLogPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	query := h.db.Order("creation_date DESC").Limit(limit).Offset(offset)
	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}

	var logs []models.WebhookLog
	if err := query.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch logs"})
		return
	}

	c.JSON(http.StatusOK, logs)
}

// GetLog godoc
// @Summary Get one webhook audit log entry by ID
// @Tags webhook-logs
// @Produce json
// @Param id path int true "Log entry ID"
// @Success 200 {object} models.WebhookLog
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /webhook-logs/{id} [get]
func (h *WebhookLogHandler) GetLog(c *gin.Context) {
	var entry models.WebhookLog
	err := h.db.First(&entry, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Log entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch log entry"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
