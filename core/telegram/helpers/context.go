package helpers

import (
	"context"

	"github.com/m3rciful/consultbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

type updateKey struct{}

// StoreContext attaches reusable context to tele.Context for downstream helpers.
// The stored context carries c, see UpdateFrom.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	if UpdateFrom(ctx) == nil {
		ctx = context.WithValue(ctx, updateKey{}, c)
	}
	c.Set(contextKey, ctx)
}

// UpdateFrom returns the tele.Context a stored context was built for, or nil.
// It lets code that only holds a context.Context account for the messages it sends.
func UpdateFrom(ctx context.Context) tele.Context {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(updateKey{}).(tele.Context)
	return c
}

// ContextFrom returns the context previously stored by middleware.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext derives a context.Context from tele.Context carrying the request id
// and update/user/chat identifiers for service-level logging.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler enriches stored context with handler metadata for downstream logs.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
