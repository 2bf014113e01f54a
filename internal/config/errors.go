package config

import (
	"fmt"
	"net/url"
)

// Error reports a missing or unusable configuration value. Retrying never
// helps; the operator has to fix the configuration.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// ValidateURL checks that raw declares an http or https scheme and a host.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return &Error{Field: "url", Reason: fmt.Sprintf("is not a valid URL: %v", err)}
	}

	switch parsed.Scheme {
	case "http", "https":
	default:
		return &Error{Field: "url", Reason: "must start with http:// or https://"}
	}
	if parsed.Host == "" {
		return &Error{Field: "url", Reason: "must contain a host"}
	}
	return nil
}
