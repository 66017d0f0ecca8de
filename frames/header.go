// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package frames

// Well-known header names.
const (
	HeaderAcceptVersion = "accept-version"
	HeaderAck           = "ack"
	HeaderContentLength = "content-length"
	HeaderContentType   = "content-type"
	HeaderDestination   = "destination"
	HeaderHeartBeat     = "heart-beat"
	HeaderHost          = "host"
	HeaderID            = "id"
	HeaderLogin         = "login"
	HeaderMessage       = "message"
	HeaderMessageID     = "message-id"
	HeaderPasscode      = "passcode"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
	HeaderServer        = "server"
	HeaderSession       = "session"
	HeaderSubscription  = "subscription"
	HeaderTransaction   = "transaction"
	HeaderVersion       = "version"
)

// Field is a single header entry.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Header is an ordered list of header entries. Keys may repeat; lookups
// return the first occurrence, which is the value that takes effect.
type Header struct {
	Fields []Field `json:"fields,omitempty"`
}

// NewHeader returns a header built from alternating key and value strings.
// A trailing key without a value is ignored.
func NewHeader(kv ...string) Header {
	h := Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}

	return h
}

// Add appends a header entry, keeping any existing entries with the same key.
func (h *Header) Add(key, value string) {
	h.Fields = append(h.Fields, Field{Key: key, Value: value})
}

// Set replaces the first entry for key (removing any others), or appends it.
func (h *Header) Set(key, value string) {
	for i := 0; i < len(h.Fields); i++ {
		if h.Fields[i].Key == key {
			h.Fields[i].Value = value
			h.delFrom(key, i+1)
			return
		}
	}

	h.Add(key, value)
}

// Get returns the first value for key, or an empty string.
func (h Header) Get(key string) string {
	v, _ := h.Contains(key)
	return v
}

// Contains returns the first value for key and whether it exists.
func (h Header) Contains(key string) (string, bool) {
	for _, f := range h.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}

	return "", false
}

// Del removes all entries for key.
func (h *Header) Del(key string) {
	h.delFrom(key, 0)
}

func (h *Header) delFrom(key string, from int) {
	n := from
	for i := from; i < len(h.Fields); i++ {
		if h.Fields[i].Key != key {
			h.Fields[n] = h.Fields[i]
			n++
		}
	}
	h.Fields = h.Fields[:n]
}

// Len returns the number of header entries.
func (h Header) Len() int {
	return len(h.Fields)
}

// GetAt returns the key and value at index i.
func (h Header) GetAt(i int) (string, string) {
	return h.Fields[i].Key, h.Fields[i].Value
}

// Clone returns a deep copy of the header.
func (h Header) Clone() Header {
	if h.Fields == nil {
		return Header{}
	}

	c := Header{Fields: make([]Field, len(h.Fields))}
	copy(c.Fields, h.Fields)
	return c
}

// Merge appends every entry of o which is not already present in h.
func (h *Header) Merge(o Header) {
	for _, f := range o.Fields {
		if _, ok := h.Contains(f.Key); !ok {
			h.Add(f.Key, f.Value)
		}
	}
}
