package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	sse "github.com/r3labs/sse/v2"
	infraprom "github.com/wikihashtags/hashtagd/internal/infra/prometheus"
	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

// resumeTimeFormat is the since= parameter format the stream server accepts.
const resumeTimeFormat = "2006-01-02T15:04:05Z"

const consumerUserAgent = "hashtagd (https://github.com/wikihashtags/hashtagd)"

// Handler processes one decoded change event. A returned error is treated as
// unrecoverable and stops the consumer.
type Handler interface {
	HandleChange(ctx context.Context, change *RecentChange) error
}

// CursorSource provides the resume point: the newest timestamp already
// persisted, or nil when nothing is stored yet.
type CursorSource interface {
	LatestTimestamp(ctx context.Context) (*time.Time, error)
}

// Config holds the consumer's connection parameters.
type Config struct {
	// URL is the base SSE endpoint, without resume parameters.
	URL string

	// RetryDelay is the fixed pause between reconnect attempts;
	// MaxRetries bounds consecutive attempts before giving up.
	RetryDelay time.Duration
	MaxRetries int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// NoHistorical forces a live-head connection even when the store
	// holds data, skipping the backlog on purpose.
	NoHistorical bool
}

// Consumer owns the long-lived stream connection for the life of the
// process. Events are dispatched to the handler one at a time, in delivery
// order; there is deliberately no concurrency here.
type Consumer struct {
	cfg     Config
	handler Handler
	cursors CursorSource
	logger  *zap.Logger
}

// NewConsumer builds a consumer over the given handler and cursor source.
func NewConsumer(cfg Config, handler Handler, cursors CursorSource, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		cursors: cursors,
		logger:  logger,
	}
}

// Run connects to the stream and blocks until the context is cancelled, the
// handler reports an unrecoverable error, or reconnect attempts are
// exhausted. On restart the process re-enters here and recomputes the resume
// point from the store, so any downtime window is replayed (bounded by the
// stream server's own retention).
func (c *Consumer) Run(ctx context.Context) error {
	since, err := c.cursors.LatestTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("stream: load resume point: %w", err)
	}

	target, err := c.buildURL(since)
	if err != nil {
		return err
	}

	c.logger.Info("connecting to event stream",
		zap.String("url", target),
		zap.Bool("resuming", since != nil && !c.cfg.NoHistorical),
	)

	client := sse.NewClient(target)
	client.Headers = map[string]string{"User-Agent": consumerUserAgent}
	client.Connection = &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: c.cfg.ConnectTimeout,
			}).DialContext,
			// Detects a connection that dies between connect and
			// first byte instead of hanging on it.
			ResponseHeaderTimeout: c.cfg.ReadTimeout,
		},
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client.ReconnectStrategy = c.reconnectStrategy(runCtx)
	client.ReconnectNotify = func(err error, delay time.Duration) {
		infraprom.StreamReconnects.Inc()
		c.logger.Warn("stream disconnected, will retry",
			zap.Error(err),
			zap.Duration("delay", delay),
		)
	}

	var fatal error
	err = client.SubscribeRawWithContext(runCtx, func(msg *sse.Event) {
		if handleErr := c.handleEvent(runCtx, msg); handleErr != nil {
			fatal = handleErr
			cancel()
		}
	})

	if fatal != nil {
		return fatal
	}
	if err != nil {
		return fmt.Errorf("stream: subscription failed: %w", err)
	}
	return ctx.Err()
}

// reconnectStrategy bounds reconnect attempts and aborts the retry wait as
// soon as ctx is cancelled, so shutdown is never held up by a pending sleep.
func (c *Consumer) reconnectStrategy(ctx context.Context) backoff.BackOff {
	tries := c.cfg.MaxRetries
	if tries < 0 {
		tries = 0
	}
	return backoff.WithContext(newOutageBackOff(c.cfg.RetryDelay, uint64(tries)), ctx)
}

// outageBackOff waits a fixed delay between reconnect attempts and gives up
// after maxTries attempts within a single outage. An attempt arriving long
// after the previous one means the connection streamed healthily in between,
// and the budget starts over.
type outageBackOff struct {
	delay    time.Duration
	maxTries uint64

	tries uint64
	last  time.Time
	now   func() time.Time
}

func newOutageBackOff(delay time.Duration, maxTries uint64) *outageBackOff {
	return &outageBackOff{delay: delay, maxTries: maxTries, now: time.Now}
}

func (b *outageBackOff) Reset() {
	b.tries = 0
	b.last = time.Time{}
}

func (b *outageBackOff) NextBackOff() time.Duration {
	now := b.now()
	if !b.last.IsZero() && now.Sub(b.last) > 2*b.delay {
		b.tries = 0
	}
	b.last = now
	b.tries++
	if b.tries > b.maxTries {
		return backoff.Stop
	}
	return b.delay
}

// buildURL parameterizes the stream URL with the resume point, unless there
// is none or the operator asked for a live-head connection.
func (c *Consumer) buildURL(since *time.Time) (string, error) {
	if since == nil || c.cfg.NoHistorical {
		return c.cfg.URL, nil
	}

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("stream: parse url %q: %w", c.cfg.URL, err)
	}

	q := u.Query()
	q.Set("since", since.UTC().Format(resumeTimeFormat))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// handleEvent decodes and dispatches one message. Only events of type
// "message" carry changes; keep-alives and other types are ignored.
// Undecodable payloads are dropped: a specific past message cannot be
// re-requested, so there is nothing to retry.
func (c *Consumer) handleEvent(ctx context.Context, msg *sse.Event) error {
	if string(msg.Event) != "message" || len(msg.Data) == 0 {
		return nil
	}

	infraprom.EventsReceived.Inc()

	var change RecentChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		infraprom.EventsMalformed.Inc()
		c.logger.Debug("skipping undecodable event", zap.Error(err))
		return nil
	}

	return c.handler.HandleChange(ctx, &change)
}
