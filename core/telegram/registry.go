package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/consultbot/core/logger"
	"github.com/m3rciful/consultbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry holds bot commands, text triggers and callbacks.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	triggers         map[string]tele.HandlerFunc
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		triggers:  make(map[string]tele.HandlerFunc),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond()
			return nil
		},
	}
}

func warnSkip(event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event, attrs...)
}

// RegisterCommand adds a new slash command.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if r == nil || name == "" || cmd.Handler == nil || cmd.Description == "" {
		warnSkip("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return errors.New("invalid command registration")
	}
	if name[0] != '/' {
		warnSkip("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return fmt.Errorf("command %q must start with /", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		warnSkip("register.command.duplicate", slog.String("name", name))
		return fmt.Errorf("command already registered: %s", name)
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns commands sorted by name, optionally hiding hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && !meta.Visible() {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return cmp.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand searches for a command by name or alias and returns the canonical key.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		if slices.Contains(cmd.Endpoints(key)[1:], name) {
			return key, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a snapshot of all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterTrigger binds an exact text phrase (e.g. a reply-keyboard button) to a handler.
// Triggers take priority over any conversation in progress.
func (r *Registry) RegisterTrigger(phrase string, handler tele.HandlerFunc) error {
	phrase = strings.TrimSpace(phrase)
	if r == nil || phrase == "" || handler == nil {
		warnSkip("register.trigger.skip", slog.String("phrase", phrase))
		return errors.New("invalid trigger registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.triggers[phrase]; exists {
		warnSkip("register.trigger.duplicate", slog.String("phrase", phrase))
		return fmt.Errorf("trigger already registered: %s", phrase)
	}
	r.triggers[phrase] = handler
	return nil
}

// LookupTrigger returns the handler bound to text, ignoring surrounding spaces.
func (r *Registry) LookupTrigger(text string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.triggers[strings.TrimSpace(text)]
	return h, ok
}

// RegisterCallback adds a callback handler mapped to its unique key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil || key == "" || handler == nil {
		warnSkip("register.callback.skip", slog.String("key", key), slog.Bool("handler_nil", handler == nil))
		return errors.New("invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		warnSkip("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback safely returns handler by key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns sorted keys (for diagnostics).
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// SetCallbackNotFound replaces the fallback handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// SetTextFallback sets a global fallback handler for text nobody else claimed.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// CommandSetter is the part of *tele.Bot used to publish the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the visible commands in the Telegram command menu.
func InitBotCommands(bot CommandSetter, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
