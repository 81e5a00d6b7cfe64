package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/hyp3rd/ewrap"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/sentinel"
)

// CollectorStats counts the snapshots seen by a Collector.
type CollectorStats struct {
	Received   uint64 `json:"received"`
	Merged     uint64 `json:"merged"`
	Duplicates uint64 `json:"duplicates"`
	Failed     uint64 `json:"failed"`
	// Dropped counts messages that arrived after Stop.
	Dropped uint64 `json:"dropped"`
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithDefaultFormat sets the serializer assumed for messages without a format header.
func WithDefaultFormat(format string) CollectorOption {
	return func(c *Collector) {
		if format != "" {
			c.format = format
		}
	}
}

// WithQueueGroup makes Subscribe join a queue group, so several collectors
// share the stream instead of each receiving every snapshot.
func WithQueueGroup(group string) CollectorOption {
	return func(c *Collector) {
		c.queue = group
	}
}

// WithCollectorLogger sets the logger of the collector.
func WithCollectorLogger(logger *zap.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Collector merges received snapshots into a destination collection.
type Collector struct {
	dst    *histcache.Collection
	format string
	queue  string
	logger *zap.Logger

	// applyMu serializes merges into dst with Stop.
	applyMu sync.Mutex
	stopped bool

	mu      sync.Mutex
	stats   CollectorStats
	changed chan struct{}
}

// NewCollector creates a collector merging into dst.
func NewCollector(dst *histcache.Collection, opts ...CollectorOption) (*Collector, error) {
	if dst == nil {
		return nil, sentinel.ErrNilCollection
	}

	c := &Collector{
		dst:     dst,
		format:  constants.DefaultSerializer,
		logger:  zap.NewNop(),
		changed: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Subscribe starts receiving snapshots on subject. Messages are handled one
// at a time on the subscription goroutine.
func (c *Collector) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	if nc == nil {
		return nil, sentinel.ErrNilClient
	}

	if subject == "" {
		subject = DefaultSubject
	}

	var (
		sub *nats.Subscription
		err error
	)

	if c.queue != "" {
		sub, err = nc.QueueSubscribe(subject, c.queue, c.Handle)
	} else {
		sub, err = nc.Subscribe(subject, c.Handle)
	}

	if err != nil {
		return nil, ewrap.Wrapf(err, "subscribe to %s", subject)
	}

	c.logger.Info("collecting snapshots", zap.String("subject", subject), zap.String("queue", c.queue))

	return sub, nil
}

// Handle decodes one message and merges its snapshot. Failures are logged
// and counted; a snapshot already folded into the destination is a duplicate.
func (c *Collector) Handle(msg *nats.Msg) {
	err := c.apply(msg)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Received++

	switch {
	case errors.Is(err, sentinel.ErrCollectorStopped):
		c.stats.Dropped++
		c.logger.Warn("snapshot dropped after stop", zap.String("subject", msg.Subject))
	case err == nil:
		c.stats.Merged++
	case errors.Is(err, sentinel.ErrAlreadyMerged):
		c.stats.Duplicates++
		c.logger.Warn("duplicate snapshot dropped", zap.String("subject", msg.Subject), zap.Error(err))
	default:
		c.stats.Failed++
		c.logger.Error("cannot merge snapshot", zap.String("subject", msg.Subject), zap.Error(err))
	}

	close(c.changed)
	c.changed = make(chan struct{})
}

// Stop waits for the merge in progress, if any, and makes Handle drop every
// later message. Once Stop returns the destination can be read safely, even
// while a draining subscription still delivers messages.
func (c *Collector) Stop() {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.stopped = true
}

// Stats returns the counters of the collector.
func (c *Collector) Stats() CollectorStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// Wait blocks until n snapshots have been merged or ctx is done.
func (c *Collector) Wait(ctx context.Context, n uint64) error {
	for {
		c.mu.Lock()
		merged := c.stats.Merged
		changed := c.changed
		c.mu.Unlock()

		if merged >= n {
			return nil
		}

		select {
		case <-ctx.Done():
			return ewrap.Wrapf(sentinel.ErrTimeoutOrCanceled, "merged %d of %d snapshots", merged, n)
		case <-changed:
		}
	}
}

func (c *Collector) apply(msg *nats.Msg) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if c.stopped {
		return sentinel.ErrCollectorStopped
	}

	return c.merge(msg)
}

func (c *Collector) merge(msg *nats.Msg) error {
	snap, err := DecodeMessage(msg, c.format)
	if err != nil {
		return err
	}

	src, err := histcache.FromSnapshot(snap, histcache.WithCatalog(c.dst.Catalog()))
	if err != nil {
		return err
	}

	err = c.dst.Merge(src)
	if err != nil {
		return err
	}

	c.logger.Debug("snapshot merged",
		zap.String("snapshot", snap.ID),
		zap.Int("objects", len(snap.Objects)),
		zap.String("into", c.dst.ID()),
	)

	return nil
}

// DecodeMessage decodes the snapshot carried by msg, using the format header
// when present and defaultFormat otherwise.
func DecodeMessage(msg *nats.Msg, defaultFormat string) (*histcache.Snapshot, error) {
	if msg == nil || len(msg.Data) == 0 {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot message")
	}

	format := defaultFormat
	if msg.Header != nil {
		if h := msg.Header.Get(HeaderFormat); h != "" {
			format = h
		}
	}

	return histcache.DecodeSnapshot(msg.Data, format)
}
