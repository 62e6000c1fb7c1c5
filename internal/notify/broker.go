// Package notify fans out state-change updates to live dashboard observers
// and, optionally, to chat channels for urgent events. Delivery is
// at-most-once and purely observational: losing a push never corrupts
// state, a client can always re-fetch.
package notify

import (
	"sync"
)

// Update kinds.
const (
	KindTask  = "task"
	KindAgent = "agent"
	KindEvent = "event"
)

// Update is one fan-out message.
type Update struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

// Broker is an in-process publish/subscribe hub. Publishing never blocks:
// a subscriber that cannot keep up drops updates.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Update
}

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Update)}
}

// Subscribe registers an observer and returns its id and channel.
func (b *Broker) Subscribe() (int, <-chan Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Update, 16)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes an observer and closes its channel.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an update to every subscriber that has buffer room.
func (b *Broker) Publish(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// SubscriberCount returns the number of live observers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
