package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type contextKey string

const (
	ctxRID      contextKey = "rid"
	ctxUpdateID contextKey = "update_id"
	ctxUserID   contextKey = "user_id"
	ctxChatID   contextKey = "chat_id"
	ctxLogger   contextKey = "logger"
	ctxHandler  contextKey = "handler"
)

// WithLogger stores the provided slog.Logger in context for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext extracts slog.Logger from context or returns the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// WithRID attaches request correlation id into context.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRID, rid)
}

// RIDFrom extracts rid from context if present.
func RIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxRID)
}

// WithUpdateMeta attaches common update identifiers to context.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUpdateID, int64(updateID))
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxChatID, chatID)
}

// WithHandler stores handler identifier in context for downstream logs.
func WithHandler(ctx context.Context, handler string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

// HandlerFrom returns handler identifier from context if present.
func HandlerFrom(ctx context.Context) string {
	return stringValue(ctx, ctxHandler)
}

// UserIDFrom extracts Telegram user ID from context.
func UserIDFrom(ctx context.Context) int64 {
	return int64Value(ctx, ctxUserID)
}

// ChatIDFrom extracts chat id from context.
func ChatIDFrom(ctx context.Context) int64 {
	return int64Value(ctx, ctxChatID)
}

// UpdateIDFrom extracts update identifier from context.
func UpdateIDFrom(ctx context.Context) int {
	return int(int64Value(ctx, ctxUpdateID))
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func int64Value(ctx context.Context, key contextKey) int64 {
	if ctx == nil {
		return 0
	}
	switch v := ctx.Value(key).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Sanitize drops control and format runes from s, keeping tabs and newlines.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeLimit applies Sanitize and limits the output length in runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

// BuildRID returns a correlation identifier in the format updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID shortens colon-separated RID into base36 segments for readability.
// When the input does not match the expected format it is returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	compact := make([]string, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return rid
		}
		compact = append(compact, strconv.FormatInt(n, 36))
	}
	return strings.Join(compact, ".")
}
