package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadParts splits the callback payload into parts using the given separator.
func PayloadParts(c tele.Context, sep string) ([]string, error) {
	p := CallbackPayload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	return strings.Split(p, sep), nil
}

// PayloadKeyIndex parses payloads like "lvl|2" into a key and a non-negative index.
func PayloadKeyIndex(c tele.Context, sep string) (string, int, error) {
	parts, err := PayloadParts(c, sep)
	if err != nil {
		return "", 0, err
	}
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, strconv.ErrSyntax
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, err
	}
	if idx < 0 {
		return "", 0, strconv.ErrRange
	}
	return parts[0], idx, nil
}

// PayloadVerb splits payloads like "nav|2026-10" into the verb and its argument.
// A bare verb such as "noop" yields an empty argument.
func PayloadVerb(c tele.Context, sep string) (string, string, error) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(CallbackPayload(c)), sep)
	if verb == "" {
		return "", "", strconv.ErrSyntax
	}
	return verb, arg, nil
}
