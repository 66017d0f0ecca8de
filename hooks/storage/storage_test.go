// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package storage

import (
	"testing"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/stretchr/testify/require"
)

var (
	subscriptionStruct = Subscription{
		Header:      []frames.Field{{Key: "selector", Value: "a"}},
		T:           SubscriptionKey,
		ID:          "SUB_cl1:1",
		Client:      "cl1",
		Identifier:  "1",
		Destination: "/queue/a",
		Ack:         "client",
		Created:     1700000000,
	}
	subscriptionJSON = []byte(`{"header":[{"key":"selector","value":"a"}],"t":"SUB","id":"SUB_cl1:1","client":"cl1","identifier":"1","destination":"/queue/a","ack":"client","created":1700000000}`)

	messageStruct = Message{
		Header:       []frames.Field{{Key: "subscription", Value: "1"}, {Key: "message-id", Value: "m-1"}},
		Body:         []byte("hello"),
		T:            MessageKey,
		ID:           "MSG_cl1:1:m-1",
		Client:       "cl1",
		Subscription: "1",
		Destination:  "/queue/a",
		MessageID:    "m-1",
		Received:     1700000000000000000,
	}
	messageJSON = []byte(`{"header":[{"key":"subscription","value":"1"},{"key":"message-id","value":"m-1"}],"body":"aGVsbG8=","t":"MSG","id":"MSG_cl1:1:m-1","client":"cl1","subscription":"1","destination":"/queue/a","message_id":"m-1","received":1700000000000000000}`)
)

func TestSubscriptionMarshalBinary(t *testing.T) {
	data, err := subscriptionStruct.MarshalBinary()
	require.NoError(t, err)
	require.JSONEq(t, string(subscriptionJSON), string(data))
}

func TestSubscriptionUnmarshalBinary(t *testing.T) {
	d := Subscription{}
	err := d.UnmarshalBinary(subscriptionJSON)
	require.NoError(t, err)
	require.Equal(t, subscriptionStruct, d)
}

func TestSubscriptionUnmarshalBinaryEmpty(t *testing.T) {
	d := Subscription{}
	err := d.UnmarshalBinary([]byte{})
	require.NoError(t, err)
	require.Equal(t, Subscription{}, d)
}

func TestMessageMarshalBinary(t *testing.T) {
	data, err := messageStruct.MarshalBinary()
	require.NoError(t, err)
	require.JSONEq(t, string(messageJSON), string(data))
}

func TestMessageUnmarshalBinary(t *testing.T) {
	d := Message{}
	err := d.UnmarshalBinary(messageJSON)
	require.NoError(t, err)
	require.Equal(t, messageStruct, d)
}

func TestMessageUnmarshalBinaryEmpty(t *testing.T) {
	d := Message{}
	err := d.UnmarshalBinary([]byte{})
	require.NoError(t, err)
	require.Equal(t, Message{}, d)
}

func TestMessageUnmarshalBinaryInvalid(t *testing.T) {
	d := Message{}
	err := d.UnmarshalBinary([]byte("{"))
	require.Error(t, err)
}

func TestMessageToFrame(t *testing.T) {
	f := messageStruct.ToFrame()
	require.Equal(t, frames.Message, f.Command)
	require.Equal(t, "m-1", f.Header.Get(frames.HeaderMessageID))
	require.Equal(t, []byte("hello"), f.Body)

	// the frame does not share memory with the stored message.
	f.Body[0] = 'j'
	f.Header.Set(frames.HeaderMessageID, "changed")
	require.Equal(t, []byte("hello"), messageStruct.Body)
	require.Equal(t, "m-1", messageStruct.Header[1].Value)
}
