package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData parses Telebot's \f<unique>|<payload> encoding.
// Returns unique and payload (may be empty).
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns cb.Unique if present; otherwise parses from Data.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb)
	return k
}

// CallbackPayload returns the payload after the unique part.
func CallbackPayload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	// cb.Unique is empty in the generic OnCallback handler, so parse Data.
	_, payload := ParseCallbackData(cb)
	return payload
}
