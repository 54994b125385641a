package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"agency-gamification/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Change-notification topics.
const (
	TopicLeaderboard  = "leaderboard"
	TopicActivity     = "activity"
	TopicPendingLeads = "pending-leads"
	TopicShifts       = "shifts"
	TopicPresence     = "presence"
)

var AllTopics = []string{TopicLeaderboard, TopicActivity, TopicPendingLeads, TopicShifts, TopicPresence}

// Event tells consumers that the data behind Topic changed.
type Event struct {
	Topic  string    `json:"topic"`
	At     time.Time `json:"at"`
	Origin string    `json:"origin,omitempty"`
}

// Relay forwards locally published events to other instances. Calls run on
// the notifier's forwarding goroutine, one at a time.
type Relay interface {
	Relay(ctx context.Context, ev Event) error
}

const (
	relayQueueSize = 256
	relayTimeout   = 2 * time.Second
)

type subscription struct {
	topics map[string]bool
	ch     chan Event
}

// Notifier is an in-process publish/subscribe hub keyed by topic name.
// Delivery never blocks the publisher: a full subscriber buffer or relay
// queue drops the event, which is acceptable for invalidation signals.
type Notifier struct {
	origin string

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	hooks  []func(Event)
	relayQ chan Event
	log    *slog.Logger
}

func NewNotifier() *Notifier {
	return &Notifier{
		origin: uuid.NewString(),
		subs:   make(map[int]*subscription),
		log:    logger.For(logger.TypeRealtime),
	}
}

func (n *Notifier) Origin() string { return n.origin }

// SetRelay starts forwarding published events to r, replacing any previous
// relay.
func (n *Notifier) SetRelay(r Relay) {
	q := make(chan Event, relayQueueSize)
	n.mu.Lock()
	old := n.relayQ
	n.relayQ = q
	n.mu.Unlock()
	if old != nil {
		close(old)
	}
	go n.forward(r, q)
}

// Close stops relaying. Local delivery keeps working.
func (n *Notifier) Close() {
	n.mu.Lock()
	q := n.relayQ
	n.relayQ = nil
	n.mu.Unlock()
	if q != nil {
		close(q)
	}
}

func (n *Notifier) forward(r Relay, q <-chan Event) {
	for ev := range q {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		if err := r.Relay(ctx, ev); err != nil {
			n.log.Warn("relay publish failed", slog.String("topic", ev.Topic), slog.Any("error", err))
		}
		cancel()
	}
}

// OnPublish registers a synchronous hook run for every delivered event.
func (n *Notifier) OnPublish(fn func(Event)) {
	n.mu.Lock()
	n.hooks = append(n.hooks, fn)
	n.mu.Unlock()
}

// Subscribe returns a channel of events for the given topics (all topics
// when empty) and a cancel func that must be called to release it.
func (n *Notifier) Subscribe(topics []string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscription{topics: make(map[string]bool), ch: make(chan Event, buffer)}
	for _, t := range topics {
		sub.topics[t] = true
	}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish delivers locally and queues each event for the relay, if any.
func (n *Notifier) Publish(topics ...string) {
	if n == nil {
		return
	}
	now := time.Now().UTC()
	for _, t := range topics {
		ev := Event{Topic: t, At: now, Origin: n.origin}
		n.deliver(ev)
		n.enqueueRelay(ev)
	}
}

// enqueueRelay sends under the read lock so SetRelay and Close cannot close
// the queue mid-send.
func (n *Notifier) enqueueRelay(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.relayQ == nil {
		return
	}
	select {
	case n.relayQ <- ev:
	default:
		n.log.Warn("relay queue full, dropping event", slog.String("topic", ev.Topic))
	}
}

func (n *Notifier) deliver(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, hook := range n.hooks {
		hook(ev)
	}
	for _, sub := range n.subs {
		if len(sub.topics) > 0 && !sub.topics[ev.Topic] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// RedisBridge relays events between instances over a Redis pub/sub channel.
type RedisBridge struct {
	client   *redis.Client
	channel  string
	notifier *Notifier
}

func NewRedisBridge(client *redis.Client, channel string, n *Notifier) *RedisBridge {
	b := &RedisBridge{client: client, channel: channel, notifier: n}
	n.SetRelay(b)
	return b
}

func (b *RedisBridge) Relay(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run delivers events published by other instances until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	log := b.notifier.log
	log.Info("redis relay subscribed", slog.String("channel", b.channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("dropping malformed relay event", slog.Any("error", err))
				continue
			}
			if ev.Origin == b.notifier.origin {
				continue
			}
			b.notifier.deliver(ev)
		}
	}
}
