package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"vault":     {},
	"strategy":  {},
	"endpoint":  {},
}

// IsAllowlisted reports whether key may be logged verbatim.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField redacts value unless key is allowlisted or value is empty.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskHeaders returns header names with every value redacted, suitable for
// logging telemetry exporter settings.
func MaskHeaders(headers map[string]string) []slog.Attr {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]slog.Attr, 0, len(keys))
	for _, key := range keys {
		out = append(out, MaskField(key, headers[key]))
	}
	return out
}
