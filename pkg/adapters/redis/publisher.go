// Package redis connects machines to Redis: state changes are published on a
// channel and mirrored into per-machine hashes, and instance locks are shared
// between replicas.
package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannel is the channel events are published on unless WithChannel is used.
const DefaultChannel = "arbor:events"

// Publisher is a ports.Listener that forwards state changes to Redis.
//
// Every event is published as JSON on the channel. When mirroring is enabled,
// the latest state of each machine is also kept in the hash <prefix>machine:<id>
// and removed when the machine is disposed.
type Publisher struct {
	client  *backend.Client
	channel string
	prefix  string
	mirror  bool
	logger  *slog.Logger
}

var _ ports.Listener = (*Publisher)(nil)

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithChannel sets the channel name.
func WithChannel(channel string) PublisherOption {
	return func(p *Publisher) {
		if channel != "" {
			p.channel = channel
		}
	}
}

// WithStateMirror keeps the latest state of each machine under prefix.
func WithStateMirror(prefix string) PublisherOption {
	return func(p *Publisher) {
		p.mirror = true
		p.prefix = prefix
	}
}

// WithLogger sets the logger used to report Redis failures.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates a Publisher on an existing client.
func NewPublisher(client *backend.Client, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:  client,
		channel: DefaultChannel,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MirrorKey returns the hash key holding the latest state of machineID.
func (p *Publisher) MirrorKey(machineID string) string {
	return p.prefix + "machine:" + machineID
}

// OnEvent implements ports.Listener. Failures are logged; the dispatcher
// has no caller to report them to.
func (p *Publisher) OnEvent(ctx context.Context, event domain.StateChangeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode event", "machine_id", event.MachineID, "error", err)
		return
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel, payload)
	if p.mirror {
		key := p.MirrorKey(event.MachineID)
		if event.Type == domain.EventDisposed {
			pipe.Del(ctx, key)
		} else {
			pipe.HSet(ctx, key,
				"state", event.NewState,
				"cause", event.Cause,
				"sequence", strconv.FormatUint(event.Sequence, 10),
				"updated_at", event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("failed to publish event",
			"machine_id", event.MachineID,
			"sequence", event.Sequence,
			"error", err)
	}
}
