// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/mochi-mqtt/stompws/frames"
)

// AckMode is the acknowledgement mode of a subscription.
type AckMode string

const (
	AckAuto             AckMode = "auto"
	AckClient           AckMode = "client"
	AckClientIndividual AckMode = "client-individual"
)

// Valid returns true if the mode is one the server will understand.
func (a AckMode) Valid() bool {
	return a == AckAuto || a == AckClient || a == AckClientIndividual
}

// MessageHandler receives the messages of a subscription.
type MessageHandler func(msg Message)

// Subscription is an active subscription to a destination.
type Subscription struct {
	Header      frames.Header  // extra headers sent with the SUBSCRIBE frame
	Handler     MessageHandler // the handler messages are delivered to
	ID          string         // the client-generated subscription id
	Destination string         // the destination subscribed to
	Ack         AckMode        // the acknowledgement mode
}

// Message is a MESSAGE frame delivered to a subscription.
type Message struct {
	Header       frames.Header // all headers of the frame
	Body         []byte        // the frame body
	Subscription string        // the id of the subscription the message was delivered to
	Destination  string        // the destination the message was sent to
	MessageID    string        // the server-assigned message id
	Ack          string        // the ack id to use when acknowledging the message (1.2)
	ContentType  string        // the content-type of the body, if known
}

// newMessage returns a message for a MESSAGE frame.
func newMessage(f frames.Frame) Message {
	return Message{
		Header:       f.Header,
		Body:         f.Body,
		Subscription: f.Header.Get(frames.HeaderSubscription),
		Destination:  f.Header.Get(frames.HeaderDestination),
		MessageID:    f.Header.Get(frames.HeaderMessageID),
		Ack:          f.Header.Get(frames.HeaderAck),
		ContentType:  f.Header.Get(frames.HeaderContentType),
	}
}

// JSON decodes a JSON message body into v.
func (m Message) JSON(v any) error {
	return json.Unmarshal(m.Body, v)
}

// Subscriptions is a map of active subscriptions keyed on subscription id.
type Subscriptions struct {
	sync.RWMutex
	internal map[string]Subscription
}

// NewSubscriptions returns a new instance of Subscriptions.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		internal: map[string]Subscription{},
	}
}

// Add adds or replaces a subscription. It returns true if the id was not in use.
func (s *Subscriptions) Add(sub Subscription) bool {
	s.Lock()
	defer s.Unlock()

	_, ok := s.internal[sub.ID]
	s.internal[sub.ID] = sub
	return !ok
}

// Get returns a subscription by id.
func (s *Subscriptions) Get(id string) (Subscription, bool) {
	s.RLock()
	defer s.RUnlock()

	sub, ok := s.internal[id]
	return sub, ok
}

// Delete removes a subscription by id. It returns true if the subscription existed.
func (s *Subscriptions) Delete(id string) bool {
	s.Lock()
	defer s.Unlock()

	_, ok := s.internal[id]
	delete(s.internal, id)
	return ok
}

// Len returns the number of active subscriptions.
func (s *Subscriptions) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.internal)
}

// GetAll returns all active subscriptions ordered by id.
func (s *Subscriptions) GetAll() []Subscription {
	s.RLock()
	defer s.RUnlock()

	m := make([]Subscription, 0, len(s.internal))
	for _, v := range s.internal {
		m = append(m, v)
	}

	sortSubscriptions(m)
	return m
}

// ByDestination returns the subscriptions bound to a destination ordered by id.
func (s *Subscriptions) ByDestination(destination string) []Subscription {
	s.RLock()
	defer s.RUnlock()

	var m []Subscription
	for _, v := range s.internal {
		if v.Destination == destination {
			m = append(m, v)
		}
	}

	sortSubscriptions(m)
	return m
}

// Clear removes all subscriptions and returns how many were removed.
func (s *Subscriptions) Clear() int {
	s.Lock()
	defer s.Unlock()

	n := len(s.internal)
	s.internal = map[string]Subscription{}
	return n
}

// sortSubscriptions orders generated numeric ids numerically and any others lexically after them.
func sortSubscriptions(m []Subscription) {
	sort.Slice(m, func(i, j int) bool {
		a, errA := strconv.ParseUint(m[i].ID, 10, 64)
		b, errB := strconv.ParseUint(m[j].ID, 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return m[i].ID < m[j].ID
	})
}
