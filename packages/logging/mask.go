package logging

import (
	"log/slog"
	"strings"
)

const maskedValue = "***"

var sensitiveKeys = []string{
	"authorization",
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"cookie",
}

// IsSensitive reports whether an attribute or header name carries a credential.
func IsSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// MaskHeaders returns a copy of h with credential values masked.
func MaskHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if IsSensitive(k) {
			out[k] = maskedValue
		} else {
			out[k] = v
		}
	}
	return out
}

func maskAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitive(a.Key) && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, maskedValue)
	}
	return a
}
