package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"ignored":      {},
}

var allowedOutcome = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"ignored":      {},
	"rate_limited": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// normalizeEnum lower-cases value and reports whether it belongs to the allowed set.
func normalizeEnum(value string, allowed map[string]struct{}) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", false
	}
	_, ok := allowed[value]
	return value, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"state",
	"from",
	"to",
	"input",
	"disposition",
	"submission_id",
	"sink",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"attempts",
	"sessions",
}
