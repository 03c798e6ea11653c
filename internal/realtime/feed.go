// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
)

// ErrFeedClosed is returned by Publish and Subscribe after Close.
var ErrFeedClosed = errors.New("realtime feed is closed")

// Publisher is what stores need to announce committed changes.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Emit builds and publishes a change. Publishing is best effort: failures are
// logged and never fail the write that caused them. A nil Publisher is a no-op.
func Emit(ctx context.Context, p Publisher, table string, typ EventType, newRow, oldRow any) {
	if p == nil {
		return
	}
	c, err := NewChange(table, typ, newRow, oldRow)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("table", table).Msg("Failed to encode change")
		return
	}
	if err := p.Publish(ctx, c); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("table", table).Str("type", string(typ)).Msg("Failed to publish change")
	}
}

// Feed fans row changes out to subscribers over a watermill pub/sub.
type Feed struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	backend    string

	mu     sync.RWMutex
	closed bool
	subs   map[*Subscription]struct{}
}

// NewMemoryFeed returns an in-process feed backed by watermill's gochannel.
func NewMemoryFeed() *Feed {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logging.NewWatermillAdapter())
	return newFeed(ch, ch, "memory")
}

func newFeed(pub message.Publisher, sub message.Subscriber, backend string) *Feed {
	return &Feed{
		publisher:  pub,
		subscriber: sub,
		backend:    backend,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Backend names the transport ("memory" or "nats").
func (f *Feed) Backend() string {
	return f.backend
}

// Publish sends c to every subscriber of c.Table.
func (f *Feed) Publish(ctx context.Context, c Change) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrFeedClosed
	}

	if c.ID == "" {
		c.ID = watermill.NewUUID()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	msg := message.NewMessage(c.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("table", c.Table)
	msg.Metadata.Set("type", string(c.Type))

	if err := f.publisher.Publish(topic(c.Table), msg); err != nil {
		return fmt.Errorf("publish %s change: %w", c.Table, err)
	}
	metrics.RealtimeEventsPublished.WithLabelValues(c.Table).Inc()
	return nil
}

// Subscription delivers matching changes on C until Unsubscribe is called or
// the feed closes; C is closed in both cases.
type Subscription struct {
	C <-chan Change

	filter Filter
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	feed   *Feed
}

// Filter returns the subscription's filter.
func (s *Subscription) Filter() Filter {
	return s.filter
}

// Unsubscribe stops delivery and waits for the delivery goroutine to exit.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
	})
}

// Subscribe starts delivering changes of filter.Table that pass filter.
func (f *Feed) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	if filter.Table == "" {
		return nil, errors.New("subscribe: table is required")
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFeedClosed
	}
	subCtx, cancel := context.WithCancel(ctx)
	msgs, err := f.subscriber.Subscribe(subCtx, topic(filter.Table))
	if err != nil {
		f.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("subscribe to %s: %w", filter.Table, err)
	}

	out := make(chan Change, 64)
	s := &Subscription{
		C:      out,
		filter: filter,
		cancel: cancel,
		done:   make(chan struct{}),
		feed:   f,
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go s.deliver(subCtx, msgs, out)
	return s, nil
}

func (s *Subscription) deliver(ctx context.Context, msgs <-chan *message.Message, out chan<- Change) {
	defer close(s.done)
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var c Change
			if err := json.Unmarshal(msg.Payload, &c); err != nil {
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable change")
				msg.Ack()
				continue
			}
			msg.Ack()
			if !s.filter.Matches(c) {
				continue
			}
			select {
			case out <- c:
				metrics.RealtimeEventsDelivered.WithLabelValues(c.Table).Inc()
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close ends every subscription and releases the transport.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.cancel()
		<-s.done
	}

	var errs []error
	if err := f.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	// gochannel is both ends; only close it once.
	if any(f.subscriber) != any(f.publisher) {
		if err := f.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	return errors.Join(errs...)
}
