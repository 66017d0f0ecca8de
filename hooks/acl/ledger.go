// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package acl

import (
	"encoding/json"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	stomp "github.com/mochi-mqtt/stompws"
)

const (
	Deny      Access = iota // client cannot use the destination
	ReadOnly                // client can only subscribe to the destination
	WriteOnly               // client can only send to the destination
	ReadWrite               // client can both send and subscribe to the destination
)

// Access determines the read/write privileges for an ACL rule.
type Access byte

// ACLRules defines destination access rules.
type ACLRules []ACLRule

// ACLRule defines access rules for matching clients.
type ACLRule struct {
	Client  RString `json:"client,omitempty" yaml:"client,omitempty"`   // the id of the client
	Login   RString `json:"login,omitempty" yaml:"login,omitempty"`     // the login the client connects with
	Filters Filters `json:"filters,omitempty" yaml:"filters,omitempty"` // filters to match
}

// Filters is a map of Access rules keyed on destination filter.
type Filters map[RString]Access

// RString is a rule value string.
type RString string

// Matches returns true if the rule matches a given string.
func (r RString) Matches(a string) bool {
	rr := string(r)
	if r == "" || r == "*" || a == rr {
		return true
	}

	i := strings.Index(rr, "*")
	if i > 0 && len(a) > i && strings.Compare(rr[:i], a[:i]) == 0 {
		return true
	}

	return false
}

// FilterMatches returns true if a filter matches a destination.
func (r RString) FilterMatches(a string) bool {
	return MatchDestination(string(r), a)
}

// MatchDestination checks if a destination matches a filter. Filter elements are
// separated by /, where * matches any single element and ** matches all remaining
// elements. Eg. filter /topic/*/prices matches /topic/acme/prices.
func MatchDestination(filter string, destination string) bool {
	filterParts := strings.Split(filter, "/")
	destParts := strings.Split(destination, "/")

	for i := 0; i < len(filterParts); i++ {
		if i >= len(destParts) {
			return false
		}

		if filterParts[i] == "**" {
			return true
		}

		if filterParts[i] == "*" {
			continue
		}

		if filterParts[i] != destParts[i] {
			return false
		}
	}

	return len(filterParts) == len(destParts)
}

// Ledger is an access ledger containing destination rules.
type Ledger struct {
	sync.Mutex `json:"-" yaml:"-"`
	ACL        ACLRules `json:"acl" yaml:"acl"`
}

// Update updates the internal values of the ledger.
func (l *Ledger) Update(ln *Ledger) {
	l.Lock()
	defer l.Unlock()
	l.ACL = ln.ACL
}

// ACLOk returns true if the rules indicate the client is allowed to subscribe to,
// or send to, a destination, based on the write bool. It also returns the index
// of the deciding rule. Destinations which no rule covers are allowed.
func (l *Ledger) ACLOk(cl *stomp.Client, destination string, write bool) (n int, ok bool) {
	l.Lock()
	defer l.Unlock()

	var login string
	if cl.Options != nil {
		login = cl.Options.Login
	}

	for n, rule := range l.ACL {
		if !rule.Client.Matches(cl.ID) || !rule.Login.Matches(login) {
			continue
		}

		if len(rule.Filters) == 0 {
			return n, true
		}

		for filter, access := range rule.Filters {
			if !filter.FilterMatches(destination) {
				continue
			}

			if write && (access == WriteOnly || access == ReadWrite) {
				return n, true
			}

			if !write && (access == ReadOnly || access == ReadWrite) {
				return n, true
			}
		}

		for filter := range rule.Filters {
			if filter.FilterMatches(destination) {
				return n, false
			}
		}
	}

	return 0, true
}

// ToJSON encodes the values into a JSON string.
func (l *Ledger) ToJSON() (data []byte, err error) {
	return json.Marshal(l)
}

// ToYAML encodes the values into a YAML string.
func (l *Ledger) ToYAML() (data []byte, err error) {
	return yaml.Marshal(l)
}

// Unmarshal decodes a JSON or YAML string (such as a rule config from a file) into a struct.
func (l *Ledger) Unmarshal(data []byte) error {
	l.Lock()
	defer l.Unlock()
	if len(data) == 0 {
		return nil
	}

	if data[0] == '{' {
		return json.Unmarshal(data, l)
	}

	return yaml.Unmarshal(data, &l)
}
