package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/consultbot/core/logger"
	"github.com/m3rciful/consultbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/consultbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates keeps a short-lived set of processed update IDs to avoid double logging.
var (
	recentMu     sync.Mutex
	recentUpdate = make(map[int]time.Time)
	keepFor      = 10 * time.Second
)

func alreadyLogged(updateID int) bool {
	now := time.Now()
	recentMu.Lock()
	defer recentMu.Unlock()
	for id, ts := range recentUpdate {
		if now.Sub(ts) > keepFor {
			delete(recentUpdate, id)
		}
	}
	if _, ok := recentUpdate[updateID]; ok {
		return true
	}
	recentUpdate[updateID] = now
	return false
}

// LoggerMiddleware logs a single receipt line per update and sets rid.
// It deduplicates by update_id because routes wrap it again on their own branch.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()

		chatID, userID := int64(0), int64(0)
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}
		rid, _ := c.Get("rid").(string)
		if rid == "" {
			rid = logger.BuildRID(upd.ID, chatID, userID)
			c.Set("rid", rid)
			c.Set("update_start", time.Now())
		}

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("kind", UpdateKind(upd)),
			}
			if chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if user != nil && user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}

			switch {
			case upd.Callback != nil:
				key, payload := callbacks.ParseCallbackData(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil && upd.Message.Contact != nil:
				// Phone numbers stay out of the logs.
				attrs = append(attrs, slog.Bool("contact", true))
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
