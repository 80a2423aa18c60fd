package middleware

import tele "gopkg.in/telebot.v4"

// UpdateObserver receives one notification per inbound update.
type UpdateObserver interface {
	ObserveUpdate(kind string)
}

// UpdateMetricsMiddleware reports every update's kind to obs.
func UpdateMetricsMiddleware(obs UpdateObserver) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if obs != nil {
				obs.ObserveUpdate(UpdateKind(c.Update()))
			}
			return next(c)
		}
	}
}

// metricsContext wraps tele.Context to count sent messages and detect keyboard usage.
type metricsContext struct{ tele.Context }

func (m metricsContext) incMessages(hasKB bool) {
	n, _ := m.Get("messages").(int)
	m.Set("messages", n+1)
	if hasKB {
		m.Set("kb", true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Edit proxies tele.Context.Edit while updating message counters.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware instruments context to track messages count and keyboard usage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set("messages", 0)
		c.Set("kb", false)
		return next(metricsContext{Context: c})
	}
}

// CountMessage records an outbound message sent outside tele.Context, e.g. through the bot directly.
func CountMessage(c tele.Context, hasKB bool) {
	if c == nil {
		return
	}
	metricsContext{Context: c}.incMessages(hasKB)
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get("messages").(int)
	kb, _ := c.Get("kb").(bool)
	return msgs, kb
}
