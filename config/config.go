// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package config

import (
	"encoding/json"
	"time"

	"github.com/mochi-mqtt/stompws/hooks/acl"
	"github.com/mochi-mqtt/stompws/hooks/debug"
	"github.com/mochi-mqtt/stompws/hooks/storage/badger"
	"github.com/mochi-mqtt/stompws/hooks/storage/bolt"
	"github.com/mochi-mqtt/stompws/hooks/storage/pebble"
	"github.com/mochi-mqtt/stompws/hooks/storage/redis"
	"gopkg.in/yaml.v3"

	stomp "github.com/mochi-mqtt/stompws"
)

// Config defines the structure of configuration data to be parsed from a config source.
type Config struct {
	Options     stomp.Options
	HookConfigs HookConfigs `yaml:"hooks" json:"hooks"`
	Session     Session     `yaml:"session" json:"session"`
}

// Session describes what a command-line client does once it is connected.
type Session struct {
	Subscriptions  []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`
	Send           []SendConfig         `yaml:"send" json:"send"`
	AutoDisconnect time.Duration        `yaml:"auto_disconnect" json:"auto_disconnect"` // disconnect after this long, if set
	Reconnect      *ReconnectConfig     `yaml:"reconnect" json:"reconnect"`             // reconnect after unexpected disconnects, if set
}

// SubscriptionConfig is a subscription made on connect.
type SubscriptionConfig struct {
	Destination string            `yaml:"destination" json:"destination"`
	Ack         string            `yaml:"ack" json:"ack"`
	Headers     map[string]string `yaml:"headers" json:"headers"`
}

// SendConfig is a message sent on connect.
type SendConfig struct {
	Destination string            `yaml:"destination" json:"destination"`
	Body        string            `yaml:"body" json:"body"`
	ContentType string            `yaml:"content_type" json:"content_type"`
	Headers     map[string]string `yaml:"headers" json:"headers"`
	Receipt     bool              `yaml:"receipt" json:"receipt"`
}

// ReconnectConfig configures the reconnect backoff.
type ReconnectConfig struct {
	Initial    time.Duration `yaml:"initial" json:"initial"`
	Max        time.Duration `yaml:"max" json:"max"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	Jitter     bool          `yaml:"jitter" json:"jitter"`
}

// Backoff returns a backoff using the configured values.
func (rc ReconnectConfig) Backoff() *stomp.Backoff {
	return &stomp.Backoff{
		Initial:    rc.Initial,
		Max:        rc.Max,
		Multiplier: rc.Multiplier,
		Jitter:     rc.Jitter,
	}
}

// HookConfigs contains configurations to enable individual hooks.
type HookConfigs struct {
	ACL     *HookACLConfig     `yaml:"acl" json:"acl"`
	Storage *HookStorageConfig `yaml:"storage" json:"storage"`
	Debug   *debug.Options     `yaml:"debug" json:"debug"`
}

// HookACLConfig contains configurations for the acl hook.
type HookACLConfig struct {
	Ledger acl.Ledger `yaml:"ledger" json:"ledger"`
}

// HookStorageConfig contains configurations for the different storage hooks.
type HookStorageConfig struct {
	Badger *badger.Options `yaml:"badger" json:"badger"`
	Bolt   *bolt.Options   `yaml:"bolt" json:"bolt"`
	Pebble *pebble.Options `yaml:"pebble" json:"pebble"`
	Redis  *redis.Options  `yaml:"redis" json:"redis"`
}

// ToHooks converts Hook file configurations into Hooks to be added to the client.
func (hc HookConfigs) ToHooks() []stomp.HookLoadConfig {
	var hlc []stomp.HookLoadConfig

	if hc.ACL != nil {
		hlc = append(hlc, hc.toHooksACL()...)
	}

	if hc.Storage != nil {
		hlc = append(hlc, hc.toHooksStorage()...)
	}

	if hc.Debug != nil {
		hlc = append(hlc, stomp.HookLoadConfig{
			Hook:   new(debug.Hook),
			Config: hc.Debug,
		})
	}

	return hlc
}

// toHooksACL converts the acl hook configuration into an acl hook.
func (hc HookConfigs) toHooksACL() []stomp.HookLoadConfig {
	return []stomp.HookLoadConfig{
		{
			Hook: new(acl.Hook),
			Config: &acl.Options{
				Ledger: &acl.Ledger{ // avoid copying sync.Locker
					ACL: hc.ACL.Ledger.ACL,
				},
			},
		},
	}
}

// toHooksStorage converts storage hook configurations into storage hooks.
func (hc HookConfigs) toHooksStorage() []stomp.HookLoadConfig {
	var hlc []stomp.HookLoadConfig
	if hc.Storage.Badger != nil {
		hlc = append(hlc, stomp.HookLoadConfig{
			Hook:   new(badger.Hook),
			Config: hc.Storage.Badger,
		})
	}

	if hc.Storage.Bolt != nil {
		hlc = append(hlc, stomp.HookLoadConfig{
			Hook:   new(bolt.Hook),
			Config: hc.Storage.Bolt,
		})
	}

	if hc.Storage.Redis != nil {
		hlc = append(hlc, stomp.HookLoadConfig{
			Hook:   new(redis.Hook),
			Config: hc.Storage.Redis,
		})
	}

	if hc.Storage.Pebble != nil {
		hlc = append(hlc, stomp.HookLoadConfig{
			Hook:   new(pebble.Hook),
			Config: hc.Storage.Pebble,
		})
	}
	return hlc
}

// Parse unmarshals a byte slice of JSON or YAML config data. Hook configurations
// are converted into Options.Hooks.
func Parse(b []byte) (*Config, error) {
	c := new(Config)
	if len(b) == 0 {
		return c, nil
	}

	if b[0] == '{' {
		err := json.Unmarshal(b, c)
		if err != nil {
			return nil, err
		}
	} else {
		err := yaml.Unmarshal(b, c)
		if err != nil {
			return nil, err
		}
	}

	c.Options.Hooks = c.HookConfigs.ToHooks()

	return c, nil
}

// FromBytes unmarshals a byte slice of JSON or YAML config data into a valid client options value.
// Any hooks configurations are converted into Hooks using the toHooks methods in this package.
func FromBytes(b []byte) (*stomp.Options, error) {
	if len(b) == 0 {
		return nil, nil
	}

	c, err := Parse(b)
	if err != nil {
		return nil, err
	}

	return &c.Options, nil
}
