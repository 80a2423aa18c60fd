package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/consultbot/core/logger"
	"github.com/m3rciful/consultbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// OnResult, when set, is told the outcome of every job: "ok" or an error class.
	OnResult func(action, result string)
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs that must keep their relative order belong on the synchronous path instead.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	errs atomic.Uint64
	sent atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run for asynchronous execution. run must be safe to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// SentCount returns the number of jobs that eventually succeeded.
func (d *Dispatcher) SentCount() uint64 {
	return d.sent.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// The job outlives the update that produced it; keep values, drop cancellation.
	deadlineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = j.run()
		if lastErr == nil {
			d.sent.Add(1)
			d.report(j.action, "ok")
			attrs := sendLogAttrs(ctx, j)
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempts", attempt))
			}
			attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))
			logger.Debug(ctx, "tg.sender", "send.success", attrs...)
			return
		}
		if !netutil.ShouldRetry(lastErr) || attempt == attempts {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = deadlineCtx.Err()
			attempt = attempts
		case <-timer.C:
			logger.Debug(ctx, "tg.sender", "send.retry.backoff",
				append(sendLogAttrs(ctx, j), slog.Int("attempts", attempt), slog.Duration("delay", delay))...)
		}
	}

	d.errs.Add(1)
	d.report(j.action, classifyError(lastErr))
	logger.Error(ctx, "tg.sender", "send.fail",
		append(sendLogAttrs(ctx, j),
			slog.String("status", "fail"),
			slog.String("err", sanitizeErrorMessage(lastErr)),
			slog.String("err_code", classifyError(lastErr)),
			slog.Int("attempts", attempts),
			slog.Duration("elapsed", time.Since(start)),
		)...,
	)
}

func (d *Dispatcher) report(action, result string) {
	if d.opts.OnResult != nil {
		d.opts.OnResult(action, result)
	}
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	return attrs
}

// classifyError buckets a send error into a short, log-friendly kind.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "timeout"
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch status := httpStatusFromError(err); {
	case status >= 500:
		return "http_5xx"
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage prevents accidental leakage of Telegram bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatusFromError(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	return 0
}
