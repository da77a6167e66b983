// Package mqtttest provides a recording stand-in for the broker connection,
// used by controller, surface and scheduler tests.
package mqtttest

import "sync"

type Publication struct {
	Topic   string
	Payload string
	Retain  bool
}

// Broker records publishes instead of sending them. The zero value is
// connected.
type Broker struct {
	mu          sync.Mutex
	pubs        []Publication
	offline     bool
	Disconnects int
}

func NewBroker() *Broker {
	return &Broker{}
}

func (b *Broker) Publish(topic, payload string, retain bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pubs = append(b.pubs, Publication{Topic: topic, Payload: payload, Retain: retain})
}

func (b *Broker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = true
	b.Disconnects++
}

func (b *Broker) SetConnected(up bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = !up
}

func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.offline
}

// All returns every recorded publication in order.
func (b *Broker) All() []Publication {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Publication(nil), b.pubs...)
}

// Payloads returns the payloads published on one topic, in order.
func (b *Broker) Payloads(topic string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, p := range b.pubs {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

// Last returns the most recent payload on a topic.
func (b *Broker) Last(topic string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.pubs) - 1; i >= 0; i-- {
		if b.pubs[i].Topic == topic {
			return b.pubs[i].Payload, true
		}
	}
	return "", false
}

func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pubs = nil
}
