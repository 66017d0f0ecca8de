// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	stomp "github.com/mochi-mqtt/stompws"
	"github.com/mochi-mqtt/stompws/hooks/storage"

	redis "github.com/go-redis/redis/v8"
)

// defaultAddr is the default address to the redis service.
const defaultAddr = "localhost:6379"

// defaultHPrefix is a prefix to better identify hsets created by stompws.
const defaultHPrefix = "stompws-"

// subscriptionKey returns a primary key for a subscription.
func subscriptionKey(cl *stomp.Client, id string) string {
	return cl.ID + ":" + id
}

// messageKey returns a primary key for a delivered message.
func messageKey(cl *stomp.Client, msg stomp.Message) string {
	return cl.ID + ":" + msg.Subscription + ":" + msg.MessageID
}

// Options contains configuration settings for the redis instance.
type Options struct {
	HPrefix string         `yaml:"h_prefix" json:"h_prefix"`
	Options *redis.Options `yaml:"options" json:"options"`
}

// Hook is a journal storage hook using Redis as a backend.
type Hook struct {
	stomp.HookBase
	config *Options        // options for connecting to the Redis instance.
	db     *redis.Client   // the Redis instance
	ctx    context.Context // a context for the connection
}

// ID returns the id of the hook.
func (h *Hook) ID() string {
	return "redis-db"
}

// Provides indicates which hook methods this hook provides.
func (h *Hook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		stomp.OnSubscribed,
		stomp.OnUnsubscribed,
		stomp.OnMessage,
		stomp.StoredSubscriptions,
		stomp.StoredMessages,
	}, []byte{b})
}

// hKey returns a hash set key with a unique prefix.
func (h *Hook) hKey(s string) string {
	return h.config.HPrefix + s
}

// Init initializes and connects to the redis service.
func (h *Hook) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return stomp.ErrInvalidConfigType
	}

	h.ctx = context.Background()

	if o, _ := config.(*Options); o == nil {
		config = &Options{
			Options: &redis.Options{
				Addr: defaultAddr,
			},
		}
	}

	h.config = config.(*Options)
	if h.config.HPrefix == "" {
		h.config.HPrefix = defaultHPrefix
	}

	if h.config.Options == nil {
		h.config.Options = &redis.Options{
			Addr: defaultAddr,
		}
	}

	h.Log.Info("connecting to redis service",
		"address", h.config.Options.Addr,
		"username", h.config.Options.Username,
		"password-len", len(h.config.Options.Password),
		"db", h.config.Options.DB)

	h.db = redis.NewClient(h.config.Options)
	_, err := h.db.Ping(h.ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping service: %w", err)
	}

	h.Log.Info("connected to redis service")

	return nil
}

// Stop closes the redis connection.
func (h *Hook) Stop() error {
	if h.db == nil {
		return nil
	}

	h.Log.Info("disconnecting from redis service")
	return h.db.Close()
}

// OnSubscribed adds a client subscription to the store.
func (h *Hook) OnSubscribed(cl *stomp.Client, sub stomp.Subscription) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	in := &storage.Subscription{
		ID:          subscriptionKey(cl, sub.ID),
		T:           storage.SubscriptionKey,
		Client:      cl.ID,
		Identifier:  sub.ID,
		Destination: sub.Destination,
		Ack:         string(sub.Ack),
		Header:      sub.Header.Fields,
		Created:     time.Now().Unix(),
	}

	err := h.db.HSet(h.ctx, h.hKey(storage.SubscriptionKey), in.ID, in).Err()
	if err != nil {
		h.Log.Error("failed to hset subscription data", "error", err, "data", in)
	}
}

// OnUnsubscribed removes a client subscription from the store.
func (h *Hook) OnUnsubscribed(cl *stomp.Client, sub stomp.Subscription) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	err := h.db.HDel(h.ctx, h.hKey(storage.SubscriptionKey), subscriptionKey(cl, sub.ID)).Err()
	if err != nil {
		h.Log.Error("failed to delete subscription data", "error", err, "id", sub.ID)
	}
}

// OnMessage journals a message delivered to a subscription.
func (h *Hook) OnMessage(cl *stomp.Client, msg stomp.Message) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	in := &storage.Message{
		ID:           messageKey(cl, msg),
		T:            storage.MessageKey,
		Client:       cl.ID,
		Subscription: msg.Subscription,
		Destination:  msg.Destination,
		MessageID:    msg.MessageID,
		Header:       msg.Header.Fields,
		Body:         msg.Body,
		Received:     time.Now().UnixNano(),
	}

	err := h.db.HSet(h.ctx, h.hKey(storage.MessageKey), in.ID, in).Err()
	if err != nil {
		h.Log.Error("failed to hset message data", "error", err, "id", in.ID)
	}
}

// StoredSubscriptions returns all stored subscriptions from the store.
func (h *Hook) StoredSubscriptions() (v []storage.Subscription, err error) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	rows, err := h.db.HGetAll(h.ctx, h.hKey(storage.SubscriptionKey)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		h.Log.Error("failed to HGetAll subscription data", "error", err)
		return
	}

	for _, row := range rows {
		var d storage.Subscription
		if err = d.UnmarshalBinary([]byte(row)); err != nil {
			h.Log.Error("failed to unmarshal subscription data", "error", err, "data", row)
			continue
		}

		v = append(v, d)
	}

	return v, nil
}

// StoredMessages returns all journaled messages from the store.
func (h *Hook) StoredMessages() (v []storage.Message, err error) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	rows, err := h.db.HGetAll(h.ctx, h.hKey(storage.MessageKey)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		h.Log.Error("failed to HGetAll message data", "error", err)
		return
	}

	for _, row := range rows {
		var d storage.Message
		if err = d.UnmarshalBinary([]byte(row)); err != nil {
			h.Log.Error("failed to unmarshal message data", "error", err, "data", row)
			continue
		}

		v = append(v, d)
	}

	return v, nil
}
