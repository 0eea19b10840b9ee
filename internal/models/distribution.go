package models

import (
	"fmt"

	"github.com/google/uuid"
)

// DistributionMode selects how a generated config file is made available.
type DistributionMode string

const (
	DistributionLocal       DistributionMode = "LOCAL"
	DistributionAPI         DistributionMode = "API"
	DistributionAPIAndLocal DistributionMode = "API_LOCAL"
)

// IncludesAPI reports whether the config is served over HTTP.
func (m DistributionMode) IncludesAPI() bool {
	return m == DistributionAPI || m == DistributionAPIAndLocal
}

// IncludesLocal reports whether the config is written to a local file.
func (m DistributionMode) IncludesLocal() bool {
	return m == DistributionLocal || m == DistributionAPIAndLocal
}

// Distribution is the shared publication config embedded by
// AdminConfigDistribution and RotationDistribution.
type Distribution struct {
	IsActive      bool             `gorm:"not null" json:"is_active"`
	Mode          DistributionMode `gorm:"not null;default:LOCAL" json:"mode"`
	URL           *string          `gorm:"uniqueIndex" json:"url,omitempty"`
	LocalFilename *string          `gorm:"uniqueIndex" json:"local_filename,omitempty"`
}

// validate enforces mode/field coherence and fills in an unguessable URL
// slug when an API mode is selected without one. Fields that the selected
// mode does not use are cleared so stale slugs never stay routable.
func (d *Distribution) validate() error {
	if d.Mode == "" {
		d.Mode = DistributionLocal
	}

	switch d.Mode {
	case DistributionLocal, DistributionAPI, DistributionAPIAndLocal:
	default:
		return &ConfigurationError{Field: "mode", Message: fmt.Sprintf("unknown distribution mode %q", d.Mode)}
	}

	if d.Mode.IncludesAPI() && (d.URL == nil || *d.URL == "") {
		slug := uuid.NewString()
		d.URL = &slug
	}
	if !d.Mode.IncludesAPI() {
		d.URL = nil
	}

	if d.Mode.IncludesLocal() {
		if d.LocalFilename == nil || *d.LocalFilename == "" {
			return &ConfigurationError{Field: "local_filename", Message: "local filename is required for local distribution"}
		}
		if !filenamePattern.MatchString(*d.LocalFilename) {
			return &ConfigurationError{Field: "local_filename", Message: fmt.Sprintf("invalid local filename %q", *d.LocalFilename)}
		}
	} else {
		d.LocalFilename = nil
	}

	return nil
}
