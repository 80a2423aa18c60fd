package middleware

import (
	coreconfig "github.com/m3rciful/consultbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind classifies an update for rate limiting, logging and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil && upd.Message.Contact != nil:
		return coreconfig.UpdateContact
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	default:
		return "other"
	}
}
