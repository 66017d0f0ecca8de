// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package stomp

import (
	"testing"

	"github.com/mochi-mqtt/stompws/frames"
	"github.com/stretchr/testify/require"
)

func TestAckModeValid(t *testing.T) {
	require.True(t, AckAuto.Valid())
	require.True(t, AckClient.Valid())
	require.True(t, AckClientIndividual.Valid())
	require.False(t, AckMode("").Valid())
	require.False(t, AckMode("sometimes").Valid())
}

func TestSubscriptionsAddGetDelete(t *testing.T) {
	s := NewSubscriptions()
	require.True(t, s.Add(Subscription{ID: "1", Destination: "/queue/a", Ack: AckAuto}))
	require.False(t, s.Add(Subscription{ID: "1", Destination: "/queue/b", Ack: AckAuto}))
	require.Equal(t, 1, s.Len())

	sub, ok := s.Get("1")
	require.True(t, ok)
	require.Equal(t, "/queue/b", sub.Destination)

	_, ok = s.Get("2")
	require.False(t, ok)

	require.True(t, s.Delete("1"))
	require.False(t, s.Delete("1"))
	require.Equal(t, 0, s.Len())
}

func TestSubscriptionsGetAllOrdered(t *testing.T) {
	s := NewSubscriptions()
	for _, id := range []string{"10", "2", "custom", "1", "abc"} {
		s.Add(Subscription{ID: id})
	}

	var ids []string
	for _, sub := range s.GetAll() {
		ids = append(ids, sub.ID)
	}

	require.Equal(t, []string{"1", "2", "10", "abc", "custom"}, ids)
}

func TestSubscriptionsByDestination(t *testing.T) {
	s := NewSubscriptions()
	s.Add(Subscription{ID: "3", Destination: "/topic/a"})
	s.Add(Subscription{ID: "1", Destination: "/topic/a"})
	s.Add(Subscription{ID: "2", Destination: "/topic/b"})

	subs := s.ByDestination("/topic/a")
	require.Len(t, subs, 2)
	require.Equal(t, "1", subs[0].ID)
	require.Equal(t, "3", subs[1].ID)

	require.Empty(t, s.ByDestination("/topic/c"))
}

func TestSubscriptionsClear(t *testing.T) {
	s := NewSubscriptions()
	s.Add(Subscription{ID: "1"})
	s.Add(Subscription{ID: "2"})

	require.Equal(t, 2, s.Clear())
	require.Equal(t, 0, s.Len())
	require.Equal(t, 0, s.Clear())
}

func TestNewMessage(t *testing.T) {
	f := frames.New(frames.Message,
		frames.HeaderSubscription, "1",
		frames.HeaderDestination, "/queue/a",
		frames.HeaderMessageID, "m-1",
		frames.HeaderAck, "ack-1",
		frames.HeaderContentType, "application/json",
	)
	f.Body = []byte(`{"symbol":"ACME","price":12.5}`)

	msg := newMessage(f)
	require.Equal(t, "1", msg.Subscription)
	require.Equal(t, "/queue/a", msg.Destination)
	require.Equal(t, "m-1", msg.MessageID)
	require.Equal(t, "ack-1", msg.Ack)
	require.Equal(t, "application/json", msg.ContentType)

	var v struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	require.NoError(t, msg.JSON(&v))
	require.Equal(t, "ACME", v.Symbol)
	require.Equal(t, 12.5, v.Price)

	msg.Body = []byte("not json")
	require.Error(t, msg.JSON(&v))
}
