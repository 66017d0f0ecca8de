// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package storage contains the storable representations shared by the journal
// hooks. A journal records the subscriptions a client has requested and the
// messages it has been delivered; it never queues undelivered messages.
package storage

import (
	"encoding/json"
	"errors"

	"github.com/mochi-mqtt/stompws/frames"
)

const (
	SubscriptionKey = "SUB" // unique key to denote Subscriptions in a store
	MessageKey      = "MSG" // unique key to denote delivered messages in a store
)

var (
	// ErrDBFileNotOpen indicates that the file database (e.g. bolt/badger) wasn't open for reading.
	ErrDBFileNotOpen = errors.New("db file not open")
)

// Serializable is an interface for objects that can be serialized and deserialized.
type Serializable interface {
	UnmarshalBinary([]byte) error
	MarshalBinary() (data []byte, err error)
}

// Subscription is a storable representation of a subscription.
type Subscription struct {
	Header      []frames.Field `json:"header,omitempty"`  // extra headers sent with the subscription
	T           string         `json:"t,omitempty"`       // the data type
	ID          string         `json:"id,omitempty"`      // the storage key
	Client      string         `json:"client,omitempty"`  // the id of the client which subscribed
	Identifier  string         `json:"identifier"`        // the subscription id sent to the server
	Destination string         `json:"destination"`       // the destination subscribed to
	Ack         string         `json:"ack,omitempty"`     // the acknowledgement mode
	Created     int64          `json:"created,omitempty"` // the time the subscription was made in unixtime
}

// MarshalBinary encodes the values into a json string.
func (d Subscription) MarshalBinary() (data []byte, err error) {
	return json.Marshal(d)
}

// UnmarshalBinary decodes a json string into a struct.
func (d *Subscription) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, d)
}

// Message is a storable representation of a delivered MESSAGE frame.
type Message struct {
	Header       []frames.Field `json:"header,omitempty"`       // all headers of the frame
	Body         []byte         `json:"body,omitempty"`         // the message body
	T            string         `json:"t,omitempty"`            // the data type
	ID           string         `json:"id,omitempty"`           // the storage key
	Client       string         `json:"client,omitempty"`       // the id of the client the message was delivered to
	Subscription string         `json:"subscription,omitempty"` // the subscription id the message was delivered to
	Destination  string         `json:"destination,omitempty"`  // the destination the message was sent to
	MessageID    string         `json:"message_id,omitempty"`   // the server-assigned message id
	Received     int64          `json:"received,omitempty"`     // the time the message was delivered in unix nanoseconds
}

// MarshalBinary encodes the values into a json string.
func (d Message) MarshalBinary() (data []byte, err error) {
	return json.Marshal(d)
}

// UnmarshalBinary decodes a json string into a struct.
func (d *Message) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, d)
}

// ToFrame converts a storage.Message back into a MESSAGE frame.
func (d *Message) ToFrame() frames.Frame {
	f := frames.Frame{
		Command: frames.Message,
		Header:  frames.Header{Fields: d.Header},
		Body:    d.Body,
	}

	// Return a deep copy of the frame data otherwise the slices will
	// continue pointing at the values from the storage message.
	return f.Copy()
}
