package core

import (
	"net/url"
	"strings"
)

const RedactedValue = "[REDACTED]"

// sensitiveKeyParts mark a key as secret when contained in its lower-cased form.
var sensitiveKeyParts = []string{
	"secret",
	"password",
	"token",
	"authorization",
	"signature",
	"api_key",
	"apikey",
	"credential",
	"cookie",
}

// Identifiers that contain a sensitive part but must stay readable so
// deliveries can be traced.
var traceKeys = map[string]struct{}{
	"subscription_id": {},
	"job_id":          {},
	"event":           {},
	"outcome":         {},
	"attempt":         {},
	"trace_id":        {},
	"request_id":      {},
	"token_type":      {},
}

// RedactSensitiveMap returns a copy of metadata with secret-looking values
// masked, walking nested maps and slices. Used for log fields and audit
// metadata.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if IsSensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

// RedactHeaders masks authorization-like subscriber headers.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		if IsSensitiveKey(key) {
			value = RedactedValue
		}
		out[key] = value
	}
	return out
}

// RedactURL hides the password of a subscriber URL carrying basic auth.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(parsed.User.Username(), RedactedValue)
	}
	return parsed.String()
}

func IsSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := traceKeys[key]; ok {
		return false
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		return RedactHeaders(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}
