// Package daemonconfig loads the PPPoE link daemon's static TOML
// configuration file: a [log] table plus one [[link]] array-of-tables
// entry per configured PPPoE link.
package daemonconfig

import (
	"fmt"

	"github.com/pelletier/go-toml"
)

// Config represents the daemon's full configuration as described by a
// TOML file.
type Config struct {
	cm    map[string]interface{}
	Log   LogConfig
	Links []LinkConfig
}

// LogConfig controls the daemon's logging level.
type LogConfig struct {
	Level string
}

// LinkConfig describes one [[link]] entry.
type LinkConfig struct {
	Name       string
	Iface      string
	Hook       string
	Service    string
	ACName     string
	MaxPayload uint16
	MACFormat  string
	Incoming   bool
	Static     bool
}

func toString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toBool(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("supplied value could not be parsed as a bool")
}

func toUint16(v interface{}) (uint16, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 || n > 0xffff {
			return 0, fmt.Errorf("value %v out of range for a uint16", n)
		}
		return uint16(n), nil
	case uint64:
		if n > 0xffff {
			return 0, fmt.Errorf("value %v out of range for a uint16", n)
		}
		return uint16(n), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v, expect an integer", v, v)
}

func newLogConfig(lcfg map[string]interface{}) (LogConfig, error) {
	lc := LogConfig{Level: "info"}
	for k, v := range lcfg {
		var err error
		switch k {
		case "level":
			lc.Level, err = toString(v)
		default:
			return lc, fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return lc, fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return lc, nil
}

func newLinkConfig(name string, lcfg map[string]interface{}) (*LinkConfig, error) {
	lc := &LinkConfig{Name: name, Hook: "orphans"}
	for k, v := range lcfg {
		var err error
		switch k {
		case "name":
			// already consumed by loadLinks
		case "iface":
			lc.Iface, err = toString(v)
		case "hook":
			lc.Hook, err = toString(v)
		case "service":
			lc.Service, err = toString(v)
		case "acname":
			lc.ACName, err = toString(v)
		case "max_payload":
			lc.MaxPayload, err = toUint16(v)
		case "mac_format":
			lc.MACFormat, err = toString(v)
		case "incoming":
			lc.Incoming, err = toBool(v)
		case "static":
			lc.Static, err = toBool(v)
		default:
			return nil, fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	if lc.Iface == "" {
		return nil, fmt.Errorf("link %v: 'iface' is required", name)
	}
	return lc, nil
}

func (cfg *Config) loadLog() error {
	got, ok := cfg.cm["log"]
	if !ok {
		cfg.Log = LogConfig{Level: "info"}
		return nil
	}
	lmap, ok := got.(map[string]interface{})
	if !ok {
		return fmt.Errorf("[log] must be a table")
	}
	lc, err := newLogConfig(lmap)
	if err != nil {
		return fmt.Errorf("log: %v", err)
	}
	cfg.Log = lc
	return nil
}

func (cfg *Config) loadLinks() error {
	got, ok := cfg.cm["link"]
	if !ok {
		return fmt.Errorf("no [[link]] entries present")
	}
	links, ok := got.([]interface{})
	if !ok {
		return fmt.Errorf("'link' must be an array of tables, e.g. '[[link]]'")
	}
	for _, entry := range links {
		lmap, ok := entry.(map[string]interface{})
		if !ok {
			return fmt.Errorf("link entry isn't a table")
		}
		name, err := toString(lmap["name"])
		if err != nil {
			return fmt.Errorf("link entry is missing a 'name': %v", err)
		}
		lc, err := newLinkConfig(name, lmap)
		if err != nil {
			return fmt.Errorf("link %v: %v", name, err)
		}
		cfg.Links = append(cfg.Links, *lc)
	}
	return nil
}

func newConfig(tree *toml.Tree) (*Config, error) {
	cfg := &Config{cm: tree.ToMap()}
	if err := cfg.loadLog(); err != nil {
		return nil, fmt.Errorf("failed to parse log config: %v", err)
	}
	if err := cfg.loadLinks(); err != nil {
		return nil, fmt.Errorf("failed to parse links: %v", err)
	}
	return cfg, nil
}

// LoadFile loads configuration from the named TOML file.
func LoadFile(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads configuration from a TOML string, primarily for tests.
func LoadString(content string) (*Config, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load config string: %v", err)
	}
	return newConfig(tree)
}
