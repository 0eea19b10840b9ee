package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DurationUnit is the unit a webhook's grant length is expressed in.
type DurationUnit string

const (
	DurationHours DurationUnit = "hours"
	DurationDays  DurationUnit = "days"
	DurationWeeks DurationUnit = "weeks"
)

// AsDuration converts n units into a time.Duration.
func (u DurationUnit) AsDuration(n int) time.Duration {
	switch u {
	case DurationDays:
		return time.Duration(n) * 24 * time.Hour
	case DurationWeeks:
		return time.Duration(n) * 7 * 24 * time.Hour
	default:
		return time.Duration(n) * time.Hour
	}
}

// Known sender profiles for HMAC validation. An empty sender selects the
// default profile.
const (
	SenderDefault       = ""
	SenderBattlemetrics = "battlemetrics"
)

// HMACConfig is the signature-verification block shared by inbound
// webhook configs.
type HMACConfig struct {
	HMACIsActive    bool   `gorm:"not null;default:false" json:"hmac_is_active"`
	HMACHashType    string `json:"hmac_hash_type"`
	HMACSecretKey   string `gorm:"size:1024" json:"-"`
	HMACHeader      string `json:"hmac_header"`
	HMACHeaderRegex string `json:"hmac_header_regex"`
	RequestSender   string `json:"request_sender"`
}

// validate rejects an HMAC-active config with missing pieces so a broken
// config never reaches request handling.
func (h *HMACConfig) validate() error {
	if !h.HMACIsActive {
		return nil
	}

	required := map[string]string{
		"hmac_hash_type":    h.HMACHashType,
		"hmac_secret_key":   h.HMACSecretKey,
		"hmac_header":       h.HMACHeader,
		"hmac_header_regex": h.HMACHeaderRegex,
	}
	for field, value := range required {
		if value == "" {
			return &ConfigurationError{Field: field, Message: "required when HMAC checking is active"}
		}
	}

	if _, err := regexp.Compile(h.HMACHeaderRegex); err != nil {
		return &ConfigurationError{Field: "hmac_header_regex", Message: err.Error()}
	}

	switch h.RequestSender {
	case SenderDefault, SenderBattlemetrics:
	default:
		return &ConfigurationError{Field: "request_sender", Message: "unknown sender profile"}
	}

	return nil
}

// RoleWebhook configures one inbound integration that grants roles on a
// set of servers. The URL slug is the unguessable path token callers post
// to.
type RoleWebhook struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Description  string    `gorm:"size:300" json:"description"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	URL          string    `gorm:"uniqueIndex;not null" json:"url"`
	CreationDate time.Time `gorm:"autoCreateTime" json:"creation_date"`
	UpdatedAt    time.Time `json:"updated_at"`

	Servers []Server `gorm:"many2many:role_webhook_servers" json:"servers,omitempty"`
	Roles   []Role   `gorm:"many2many:role_webhook_roles" json:"roles,omitempty"`

	UnitOfDuration   DurationUnit `gorm:"not null;default:days" json:"unit_of_duration"`
	DurationUntilEnd *int         `json:"duration_until_end,omitempty"`

	AllowCustomDurationUntilEnd      bool `gorm:"not null;default:false" json:"allow_custom_duration_until_end"`
	ActiveAndIncreaseCommonDateOfEnd bool `gorm:"not null" json:"active_and_increase_common_date_of_end"`
	TryToIncreaseExistingRecord      bool `gorm:"not null;default:false" json:"try_to_increase_existing_record"`
	SetCommonDateOfEnd               bool `gorm:"not null" json:"set_common_date_of_end"`

	HMACConfig `gorm:"embedded"`
}

func (w *RoleWebhook) BeforeSave(*gorm.DB) error {
	if w.URL == "" {
		w.URL = uuid.NewString()
	}
	switch w.UnitOfDuration {
	case DurationHours, DurationDays, DurationWeeks:
	default:
		return &ConfigurationError{Field: "unit_of_duration", Message: "must be hours, days or weeks"}
	}
	return w.HMACConfig.validate()
}

// Webhook log levels.
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// Log source kinds: the typed replacement for a polymorphic foreign key.
const (
	LogSourceRoleWebhook = "role_webhook"
)

// WebhookLog is one append-only audit entry raised while handling a
// webhook call or an expiry sweep. Rows are never mutated after creation.
type WebhookLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Message      string    `gorm:"type:text;not null" json:"message"`
	Level        string    `gorm:"size:10;not null;index" json:"level"`
	WebhookInfo  string    `gorm:"type:text" json:"webhook_info"`
	RequestInfo  string    `gorm:"type:text" json:"request_info"`
	SourceKind   string    `gorm:"size:32;not null;index:idx_webhook_logs_source" json:"source_kind"`
	SourceID     uint      `gorm:"not null;index:idx_webhook_logs_source" json:"source_id"`
	CreationDate time.Time `gorm:"autoCreateTime;index" json:"creation_date"`
}
