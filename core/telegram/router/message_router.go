package router

import (
	"time"

	tg "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is a multi-step dialog that claims a user's messages while in progress.
type Conversation interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
	HandleContact(c tele.Context) error
}

// TextOptions controls fallback behaviour for text, contact and document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownContact  tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// TextRoutes builds handlers for text, contact and document routing.
// Text goes to registered triggers first, then the conversation, then commands typed without a slash.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	inProgress := func(c tele.Context) bool {
		return conv != nil && conv.InProgress(senderID(c))
	}

	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if h, ok := reg.LookupTrigger(text); ok {
				return handleWithSummary(c, "trigger", start, func() error { return h(c) })
			}
		}

		if inProgress(c) {
			return handleWithSummary(c, "conversation", start, func() error { return conv.HandleText(c) })
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error { return opts.UnknownText(c) })
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	contactHandler := func(c tele.Context) error {
		start := time.Now()
		if inProgress(c) {
			return handleWithSummary(c, "conversation_contact", start, func() error { return conv.HandleContact(c) })
		}
		if opts.UnknownContact != nil {
			return handleWithSummary(c, "unknown_contact", start, func() error { return opts.UnknownContact(c) })
		}
		logHandlerSummary(c, "unknown_contact", start, "skip", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, func() error { return opts.UnknownDocument(c) })
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnContact, Handler: wrap(contactHandler)},
		{Endpoint: tele.OnDocument, Handler: wrap(docHandler)},
	}
}
