package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/models"
	"github.com/squadops/squadconf/internal/service"
)

type ConfigHandler struct {
	db *gorm.DB
}

func NewConfigHandler(db *gorm.DB) *ConfigHandler {
	return &ConfigHandler{db: db}
}

// AdminConfig godoc
// @Summary Render the admin config for a distributed server
// @Tags configs
// @Produce plain
// @Param token path string true "Distribution URL token"
// @Success 200 {string} string "server admin config"
// @Failure 403 {object} DetailResponse
// @Failure 404 {object} DetailResponse
// @Failure 500 {object} DetailResponse
// @Router /configs/admins/{token} [get]
func (h *ConfigHandler) AdminConfig(c *gin.Context) {
	token := c.Param("token")

	var dist models.AdminConfigDistribution
	err := h.db.Preload("Server").Where("url = ?", token).First(&dist).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, DetailResponse{Detail: "Not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to fetch distribution"})
		return
	}

	if !dist.IsActive || !dist.Mode.IncludesAPI() {
		c.JSON(http.StatusForbidden, DetailResponse{Detail: "Distribution is disabled"})
		return
	}

	content, err := service.GenerateServerConfig(h.db, &dist.Server, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to generate config"})
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}
