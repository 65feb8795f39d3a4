package survey

import "fmt"

// ConfigurationError reports a missing or malformed schema, group definition
// or other run configuration. It is fatal and raised before processing.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
