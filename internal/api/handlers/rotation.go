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

type RotationHandler struct {
	db *gorm.DB
}

func NewRotationHandler(db *gorm.DB) *RotationHandler {
	return &RotationHandler{db: db}
}

func (h *RotationHandler) distribution(c *gin.Context) (*models.RotationDistribution, bool) {
	token := c.Param("token")

	var dist models.RotationDistribution
	err := h.db.Preload("Rotation").Where("url = ?", token).First(&dist).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, DetailResponse{Detail: "Not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to fetch distribution"})
		return nil, false
	}

	if !dist.IsActive || !dist.Mode.IncludesAPI() {
		c.JSON(http.StatusForbidden, DetailResponse{Detail: "Distribution is disabled"})
		return nil, false
	}
	return &dist, true
}

// Current godoc
// @Summary Render the rotation pack scheduled for right now
// @Tags rotations
// @Produce plain
// @Param token path string true "Distribution URL token"
// @Success 200 {string} string "rotation config"
// @Failure 403 {object} DetailResponse
// @Failure 404 {object} DetailResponse
// @Router /rotations/{token}/current [get]
func (h *RotationHandler) Current(c *gin.Context) {
	dist, ok := h.distribution(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	pack, err := service.CurrentPack(h.db, dist, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to resolve rotation pack"})
		return
	}

	content := service.FormatRotationConfig(&dist.Rotation, pack, now)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

// Next godoc
// @Summary Render the rotation pack that follows the distribution cursor
// @Tags rotations
// @Produce plain
// @Param token path string true "Distribution URL token"
// @Success 200 {string} string "rotation config"
// @Failure 403 {object} DetailResponse
// @Failure 404 {object} DetailResponse
// @Router /rotations/{token}/next [get]
func (h *RotationHandler) Next(c *gin.Context) {
	dist, ok := h.distribution(c)
	if !ok {
		return
	}

	pack, err := service.NextPack(h.db, dist)
	if err != nil {
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to resolve rotation pack"})
		return
	}

	content := service.FormatRotationConfig(&dist.Rotation, pack, time.Now().UTC())
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

// PackBySlug godoc
// @Summary Render one rotation pack addressed by its slug
// @Tags rotations
// @Produce plain
// @Param token path string true "Distribution URL token"
// @Param slug path string true "Pack slug"
// @Success 200 {string} string "rotation config"
// @Failure 403 {object} DetailResponse
// @Failure 404 {object} DetailResponse
// @Router /rotations/{token}/packs/{slug} [get]
func (h *RotationHandler) PackBySlug(c *gin.Context) {
	dist, ok := h.distribution(c)
	if !ok {
		return
	}

	pack, err := service.PackBySlug(h.db, dist, c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, DetailResponse{Detail: "Not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, DetailResponse{Detail: "Failed to resolve rotation pack"})
		return
	}

	content := service.FormatRotationConfig(&dist.Rotation, pack, time.Now().UTC())
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}
