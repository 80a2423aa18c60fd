package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command and its menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run for the configured admin only and stay out of the menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Visible reports whether the command belongs in the public command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}

// Endpoints returns name followed by every non-empty alias, each with a leading slash.
func (c Command) Endpoints(name string) []string {
	out := make([]string, 0, 1+len(c.Aliases))
	out = append(out, slash(name))
	for _, alias := range c.Aliases {
		if strings.TrimSpace(alias) == "" {
			continue
		}
		out = append(out, slash(alias))
	}
	return out
}

func slash(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/") {
		return s
	}
	return "/" + s
}
