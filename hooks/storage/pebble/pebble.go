// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: werbenhu

package pebble

import (
	"bytes"
	"strings"
	"time"

	pebbledb "github.com/cockroachdb/pebble"
	stomp "github.com/mochi-mqtt/stompws"
	"github.com/mochi-mqtt/stompws/hooks/storage"
)

const (
	// defaultDbFile is the default file path for the pebble db file.
	defaultDbFile = ".pebble"
)

// subscriptionKey returns a primary key for a subscription.
func subscriptionKey(cl *stomp.Client, id string) string {
	return storage.SubscriptionKey + "_" + cl.ID + ":" + id
}

// messageKey returns a primary key for a delivered message.
func messageKey(cl *stomp.Client, msg stomp.Message) string {
	return storage.MessageKey + "_" + cl.ID + ":" + msg.Subscription + ":" + msg.MessageID
}

// keyUpperBound returns the upper bound for a given byte slice by incrementing the last byte.
// It returns nil if all bytes are incremented and equal to 0.
func keyUpperBound(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] = end[i] + 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

const (
	NoSync = "NoSync" // NoSync specifies the default write options for writes which do not synchronize to disk.
	Sync   = "Sync"   // Sync specifies the default write options for writes which synchronize to disk.
)

// Options contains configuration settings for the pebble DB instance.
type Options struct {
	Options *pebbledb.Options
	Mode    string `yaml:"mode" json:"mode"`
	Path    string `yaml:"path" json:"path"`
}

// Hook is a journal storage hook using a pebble DB file store as a backend.
type Hook struct {
	stomp.HookBase
	config *Options               // options for configuring the pebble DB instance.
	db     *pebbledb.DB           // the pebble DB instance
	mode   *pebbledb.WriteOptions // mode holds the optional per-query parameters for Set and Delete operations
}

// ID returns the id of the hook.
func (h *Hook) ID() string {
	return "pebble-db"
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

// Init initializes and connects to the pebble instance.
func (h *Hook) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return stomp.ErrInvalidConfigType
	}

	if o, _ := config.(*Options); o == nil {
		h.config = new(Options)
	} else {
		h.config = config.(*Options)
	}

	if len(h.config.Path) == 0 {
		h.config.Path = defaultDbFile
	}

	if h.config.Options == nil {
		h.config.Options = &pebbledb.Options{}
	}

	h.mode = pebbledb.NoSync
	if strings.EqualFold(h.config.Mode, Sync) {
		h.mode = pebbledb.Sync
	}

	var err error
	h.db, err = pebbledb.Open(h.config.Path, h.config.Options)
	if err != nil {
		return err
	}

	return nil
}

// Stop closes the pebble instance.
func (h *Hook) Stop() error {
	if h.db == nil {
		return nil
	}

	err := h.db.Close()
	h.db = nil
	return err
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

	_ = h.setKv(in.ID, in)
}

// OnUnsubscribed removes a client subscription from the store.
func (h *Hook) OnUnsubscribed(cl *stomp.Client, sub stomp.Subscription) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	_ = h.delKv(subscriptionKey(cl, sub.ID))
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

	_ = h.setKv(in.ID, in)
}

// StoredSubscriptions returns all stored subscriptions from the store.
func (h *Hook) StoredSubscriptions() (v []storage.Subscription, err error) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	err = h.iterKv(storage.SubscriptionKey, func(value []byte) {
		item := storage.Subscription{}
		if err := item.UnmarshalBinary(value); err == nil {
			v = append(v, item)
		}
	})
	return
}

// StoredMessages returns all journaled messages from the store.
func (h *Hook) StoredMessages() (v []storage.Message, err error) {
	if h.db == nil {
		h.Log.Error("", "error", storage.ErrDBFileNotOpen)
		return
	}

	err = h.iterKv(storage.MessageKey, func(value []byte) {
		item := storage.Message{}
		if err := item.UnmarshalBinary(value); err == nil {
			v = append(v, item)
		}
	})
	return
}

// delKv deletes a key-value pair from the database.
func (h *Hook) delKv(k string) error {
	err := h.db.Delete([]byte(k), h.mode)
	if err != nil {
		h.Log.Error("failed to delete data", "error", err, "key", k)
		return err
	}
	return nil
}

// setKv stores a key-value pair in the database.
func (h *Hook) setKv(k string, v storage.Serializable) error {
	bs, _ := v.MarshalBinary()
	err := h.db.Set([]byte(k), bs, h.mode)
	if err != nil {
		h.Log.Error("failed to update data", "error", err, "key", k)
		return err
	}
	return nil
}

// iterKv visits the value of every key with the given prefix. Values which fail
// to decode are skipped by the caller.
func (h *Hook) iterKv(prefix string, visit func([]byte)) error {
	iter, err := h.db.NewIter(&pebbledb.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keyUpperBound([]byte(prefix)),
	})
	if err != nil {
		h.Log.Error("failed to iter data", "error", err, "prefix", prefix)
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		visit(iter.Value())
	}

	return nil
}
