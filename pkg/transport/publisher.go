// Package transport ships shard snapshots over NATS. A Publisher encodes the
// collection of a finished shard and publishes it on a subject; a Collector
// subscribed to that subject decodes every snapshot and merges it into a
// destination collection. Redelivered snapshots are refused by the lineage
// check of the destination, so at-least-once delivery is safe.
package transport

import (
	"context"
	"strconv"

	"github.com/hyp3rd/ewrap"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/constants"
	"github.com/hyp3rd/histcache/internal/sentinel"
)

// Message headers set on every published snapshot.
const (
	HeaderFormat   = "Histcache-Format"
	HeaderSnapshot = "Histcache-Snapshot"
	HeaderObjects  = "Histcache-Objects"
)

// DefaultSubject is the subject snapshots are published on when none is configured.
const DefaultSubject = "histcache.snapshots"

// Connect dials a NATS server with a client name and the given extra options.
func Connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	all := make([]nats.Option, 0, len(opts)+1)
	all = append(all, nats.Name(name))
	all = append(all, opts...)

	nc, err := nats.Connect(url, all...)
	if err != nil {
		return nil, ewrap.Wrapf(err, "connect to nats %s", url)
	}

	return nc, nil
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithSubject sets the subject snapshots are published on.
func WithSubject(subject string) PublisherOption {
	return func(p *Publisher) {
		if subject != "" {
			p.subject = subject
		}
	}
}

// WithFormat sets the serializer used to encode snapshots.
func WithFormat(format string) PublisherOption {
	return func(p *Publisher) {
		if format != "" {
			p.format = format
		}
	}
}

// WithPublisherLogger sets the logger of the publisher.
func WithPublisherLogger(logger *zap.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Publisher publishes encoded snapshots to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	format  string
	logger  *zap.Logger
}

// NewPublisher creates a publisher over an established connection.
func NewPublisher(nc *nats.Conn, opts ...PublisherOption) (*Publisher, error) {
	if nc == nil {
		return nil, sentinel.ErrNilClient
	}

	p := &Publisher{
		nc:      nc,
		subject: DefaultSubject,
		format:  constants.DefaultSerializer,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Subject returns the subject snapshots are published on.
func (p *Publisher) Subject() string { return p.subject }

// Publish encodes snap and publishes it, then flushes so the server has
// received the message when Publish returns.
func (p *Publisher) Publish(ctx context.Context, snap *histcache.Snapshot) error {
	msg, err := EncodeMessage(p.subject, snap, p.format)
	if err != nil {
		return err
	}

	err = p.nc.PublishMsg(msg)
	if err != nil {
		return ewrap.Wrapf(err, "publish snapshot %s", snap.ID)
	}

	err = p.nc.FlushWithContext(ctx)
	if err != nil {
		return ewrap.Wrapf(err, "flush snapshot %s", snap.ID)
	}

	p.logger.Info("snapshot published",
		zap.String("subject", p.subject),
		zap.String("snapshot", snap.ID),
		zap.Int("objects", len(snap.Objects)),
		zap.Int("bytes", len(msg.Data)),
	)

	return nil
}

// PublishCollection snapshots c and publishes it. Its signature matches the
// shard runner's done hook.
func (p *Publisher) PublishCollection(ctx context.Context, c *histcache.Collection) error {
	if c == nil {
		return sentinel.ErrNilCollection
	}

	snap, err := c.Snapshot()
	if err != nil {
		return err
	}

	return p.Publish(ctx, snap)
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

// EncodeMessage builds the NATS message carrying snap.
func EncodeMessage(subject string, snap *histcache.Snapshot, format string) (*nats.Msg, error) {
	if snap == nil {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot")
	}

	data, err := histcache.EncodeSnapshot(snap, format)
	if err != nil {
		return nil, err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderFormat, format)
	msg.Header.Set(HeaderSnapshot, snap.ID)
	msg.Header.Set(HeaderObjects, strconv.Itoa(len(snap.Objects)))

	return msg, nil
}
