package hub

import (
	"strings"
	"sync"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/metric"
	"github.com/Hardikdarji921/esp32-datalogger/snapshot"
	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

// GlobalChannel is the legacy single-broker channel. Every bridge
// payload is published here as an EventMQTTData event.
const GlobalChannel = "global"

// EventMQTTData is the event name used on the global channel.
const EventMQTTData = "mqtt_data"

const (
	deviceChannelPrefix = "device."
	deviceEventPrefix   = "device_update_"
)

// DeviceChannel returns the channel key for one device's updates.
func DeviceChannel(serial string) string {
	return deviceChannelPrefix + serial
}

// Event is one snapshot delivery to a subscriber. The name mirrors the
// original dashboard protocol: device_update_<serial> on device
// channels, mqtt_data on the global channel.
type Event struct {
	Name     string             `json:"name"`
	Snapshot telemetry.Snapshot `json:"snapshot"`
}

// Hub maintains per-channel subscriber sets and the snapshot store used
// for replay-on-join.
type Hub struct {
	mu        sync.RWMutex
	channels  map[string]map[*Subscription]struct{}
	snapshots *snapshot.Store
	closed    bool

	queueSize   int
	serviceName string
	coreMetrics *metric.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize sets the per-subscriber queue capacity.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithMetrics records publish, drop, and subscriber-count metrics.
func WithMetrics(registry *metric.MetricsRegistry, serviceName string) Option {
	return func(h *Hub) {
		if registry != nil {
			h.coreMetrics = registry.CoreMetrics()
			h.serviceName = serviceName
		}
	}
}

// New creates a hub replaying from the given snapshot store.
func New(snapshots *snapshot.Store, opts ...Option) *Hub {
	h := &Hub{
		channels:    make(map[string]map[*Subscription]struct{}),
		snapshots:   snapshots,
		queueSize:   64,
		serviceName: "hub",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// eventName maps a channel key to its outbound event name.
func eventName(channel, serial string) string {
	if channel == GlobalChannel {
		return EventMQTTData
	}
	return deviceEventPrefix + serial
}

// Subscribe registers a new sink for the channel and returns it together
// with the replay events for the channel's current snapshot state. The
// sink is registered before the snapshot store is read, so an update
// racing the join lands in the queue rather than being missed.
func (h *Hub) Subscribe(channel string) (*Subscription, []Event, error) {
	sub, err := newSubscription(h, channel, h.queueSize)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.queue.Close()
		return nil, nil, errors.WrapInvalid(errors.ErrShuttingDown, "Hub", "Subscribe", "hub closed")
	}
	sinks, ok := h.channels[channel]
	if !ok {
		sinks = make(map[*Subscription]struct{})
		h.channels[channel] = sinks
	}
	sinks[sub] = struct{}{}
	total := h.subscriberCountLocked()
	h.mu.Unlock()

	if h.coreMetrics != nil {
		h.coreMetrics.RecordSubscribers(h.serviceName, total)
	}

	return sub, h.replay(channel), nil
}

// replay builds the events a fresh subscriber should see immediately.
func (h *Hub) replay(channel string) []Event {
	if h.snapshots == nil {
		return nil
	}

	if channel == GlobalChannel {
		snaps := h.snapshots.List()
		events := make([]Event, 0, len(snaps))
		for _, snap := range snaps {
			events = append(events, Event{Name: EventMQTTData, Snapshot: snap})
		}
		return events
	}

	serial := strings.TrimPrefix(channel, deviceChannelPrefix)
	snap, err := h.snapshots.Get(serial)
	if err != nil {
		// Device has never posted; the viewer starts blank.
		return nil
	}
	return []Event{{Name: eventName(channel, serial), Snapshot: snap}}
}

// Publish delivers the snapshot to every sink currently subscribed to
// the channel. Enqueueing is non-blocking; sinks whose queues are closed
// are collected and removed after the delivery loop.
func (h *Hub) Publish(channel string, snap telemetry.Snapshot) {
	event := Event{Name: eventName(channel, snap.Serial), Snapshot: snap}

	h.mu.RLock()
	sinks := make([]*Subscription, 0, len(h.channels[channel]))
	for sub := range h.channels[channel] {
		sinks = append(sinks, sub)
	}
	h.mu.RUnlock()

	var dead []*Subscription
	for _, sub := range sinks {
		if err := sub.deliver(event); err != nil {
			dead = append(dead, sub)
		}
	}

	if h.coreMetrics != nil {
		h.coreMetrics.RecordUpdatePublished(h.serviceName, channel)
	}

	for _, sub := range dead {
		sub.Unsubscribe()
	}
}

// remove detaches a subscription from its channel. Called exactly once
// per subscription via its close path.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if sinks, ok := h.channels[sub.channel]; ok {
		delete(sinks, sub)
		if len(sinks) == 0 {
			delete(h.channels, sub.channel)
		}
	}
	total := h.subscriberCountLocked()
	h.mu.Unlock()

	if h.coreMetrics != nil {
		h.coreMetrics.RecordSubscribers(h.serviceName, total)
	}
}

func (h *Hub) subscriberCountLocked() int {
	n := 0
	for _, sinks := range h.channels {
		n += len(sinks)
	}
	return n
}

// SubscriberCount returns the number of live subscriptions across all
// channels.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscriberCountLocked()
}

// Close unsubscribes every sink and rejects further subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var subs []*Subscription
	for _, sinks := range h.channels {
		for sub := range sinks {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (h *Hub) recordDrop(channel string) {
	if h.coreMetrics != nil {
		h.coreMetrics.RecordUpdateDropped(h.serviceName, channel)
	}
}
