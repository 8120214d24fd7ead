package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values grant access to the
// conductor and must never reach the log output.
var sensitiveKeys = map[string]bool{
	"token":       true,
	"cap_secret":  true,
	"secret":      true,
	"signature":   true,
	"private_key": true,
}

// IsSensitive reports whether an attribute key carries credentials.
func IsSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// redactAttr is a slog ReplaceAttr func masking sensitive attributes.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}
