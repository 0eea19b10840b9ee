package models

import (
	"fmt"
	"regexp"
)

// filenamePattern matches safe local config filenames: letters, digits,
// underscores and dashes, no path separators.
var filenamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_\-]*(\.[A-Za-z0-9]+)?$`)

// ConfigurationError is raised by save-time model validation: a record in
// a state that must never reach request handling (for example a webhook
// with HMAC checking enabled but no secret key).
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
