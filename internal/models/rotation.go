package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/textspec"
)

// LayersPack is a named list of map layers kept as raw newline-delimited
// text, validated against the layer token spec on every save.
type LayersPack struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Title        string    `gorm:"uniqueIndex;not null" json:"title"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	Layers       string    `gorm:"type:text" json:"layers"`
	Description  string    `json:"description"`
	CreationDate time.Time `gorm:"autoCreateTime" json:"creation_date"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ParsedLayers returns the well-formed layer names, in order.
func (p *LayersPack) ParsedLayers() []string {
	return textspec.Values(textspec.Layers.Parse(p.Layers), textspec.KindLayer)
}

func (p *LayersPack) BeforeSave(*gorm.DB) error {
	if errs := textspec.Layers.CheckErrors(textspec.Layers.Parse(p.Layers)); len(errs) > 0 {
		return &ConfigurationError{Field: "layers", Message: strings.Join(errs, "; ")}
	}
	return nil
}

// Rotation is an ordered and/or calendar-scheduled sequence of layer
// packs for a server.
type Rotation struct {
	ID           uint                 `gorm:"primarykey" json:"id"`
	Title        string               `gorm:"uniqueIndex;not null" json:"title"`
	Description  string               `json:"description"`
	Packs        []RotationLayersPack `gorm:"foreignKey:RotationID" json:"packs,omitempty"`
	CreationDate time.Time            `gorm:"autoCreateTime" json:"creation_date"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// RotationLayersPack places one layers pack inside a rotation, addressed
// either by a sequential queue number or by a calendar date plus a
// time-of-day window. Exactly one addressing mode is set; assigning a
// start date clears the queue number.
type RotationLayersPack struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	RotationID  uint       `gorm:"not null;index" json:"rotation_id"`
	PackID      uint       `gorm:"not null;index" json:"pack_id"`
	Pack        LayersPack `gorm:"foreignKey:PackID;constraint:OnDelete:CASCADE" json:"pack,omitempty"`
	Description string     `json:"description"`

	QueueNumber *uint      `json:"queue_number,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	StartTimeAt *string    `gorm:"size:5" json:"start_time_at,omitempty"`
	EndTimeAt   *string    `gorm:"size:5" json:"end_time_at,omitempty"`

	// Slug addresses this entry directly through the rotation API.
	Slug *string `gorm:"index" json:"slug,omitempty"`
}

// PositionDescriptor names the pack's place in the rotation for config
// headers: "#3" for queued packs, the date/time window otherwise.
func (rp *RotationLayersPack) PositionDescriptor() string {
	if rp.QueueNumber != nil {
		return fmt.Sprintf("#%d", *rp.QueueNumber)
	}

	var b strings.Builder
	if rp.StartDate != nil {
		b.WriteString(rp.StartDate.Format("2006-01-02"))
		b.WriteString(" ")
	}
	start, end := "00:00", "23:59"
	if rp.StartTimeAt != nil {
		start = *rp.StartTimeAt
	}
	if rp.EndTimeAt != nil {
		end = *rp.EndTimeAt
	}
	fmt.Fprintf(&b, "from %s to %s", start, end)
	return b.String()
}

func (rp *RotationLayersPack) BeforeSave(*gorm.DB) error {
	if rp.StartDate != nil {
		rp.QueueNumber = nil
	}
	if rp.StartDate == nil && rp.QueueNumber == nil {
		return &ConfigurationError{Field: "queue_number", Message: "set either a queue number or a start date"}
	}

	for field, value := range map[string]*string{"start_time_at": rp.StartTimeAt, "end_time_at": rp.EndTimeAt} {
		if value == nil {
			continue
		}
		if _, err := time.Parse("15:04", *value); err != nil {
			return &ConfigurationError{Field: field, Message: fmt.Sprintf("invalid time of day %q, want HH:MM", *value)}
		}
	}

	return nil
}

// RotationDistribution publishes one rotation and keeps the sequencer
// cursor: the queue number last served and when it last advanced.
type RotationDistribution struct {
	ID         uint     `gorm:"primarykey" json:"id"`
	RotationID uint     `gorm:"uniqueIndex;not null" json:"rotation_id"`
	Rotation   Rotation `gorm:"foreignKey:RotationID;constraint:OnDelete:CASCADE" json:"rotation,omitempty"`

	LastUpdateDate  *time.Time `json:"last_update_date,omitempty"`
	LastQueueNumber uint       `gorm:"not null;default:1" json:"last_queue_number"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Distribution `gorm:"embedded"`
}

func (d *RotationDistribution) BeforeSave(*gorm.DB) error {
	return d.Distribution.validate()
}
