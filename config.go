package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// listenerSpec is one raw [kind.label] table entry as it appears in the
// TOML file.
type listenerSpec struct {
	Port   int    `toml:"port"`
	Target string `toml:"target"`
}

// rawConfig mirrors the TOML file's top-level shape: a mapping from
// listener kind ("http", "socks4", "socks5", "tcppm") to label → spec.
type rawConfig struct {
	HTTP   map[string]listenerSpec `toml:"http"`
	SOCKS4 map[string]listenerSpec `toml:"socks4"`
	SOCKS5 map[string]listenerSpec `toml:"socks5"`
	TCPPM  map[string]listenerSpec `toml:"tcppm"`
}

// ListenerEntry is one validated, flattened listener configuration. Name is
// an opaque label used only in log lines.
type ListenerEntry struct {
	Kind   string // "http", "socks4", "socks5", "tcppm"
	Name   string
	Port   int
	Target string // only set, and required, for kind == "tcppm"
}

// Config is the fully validated, flattened listener set loaded from a TOML
// configuration file.
type Config struct {
	Listeners []ListenerEntry
}

// defaultConfigTOML is loaded when no config path is given on the command
// line, per the CLI contract.
const defaultConfigTOML = "[http.a]\nport = 3128\n"

// LoadConfig reads and validates the TOML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

// LoadDefaultConfig parses the built-in default configuration used when no
// path is given on the command line.
func LoadDefaultConfig() (*Config, error) {
	return parseConfig([]byte(defaultConfigTOML))
}

func parseConfig(data []byte) (*Config, error) {
	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var entries []ListenerEntry
	appendKind := func(kind string, table map[string]listenerSpec) {
		for name, spec := range table {
			entries = append(entries, ListenerEntry{
				Kind:   kind,
				Name:   name,
				Port:   spec.Port,
				Target: spec.Target,
			})
		}
	}

	appendKind("http", raw.HTTP)
	appendKind("socks4", raw.SOCKS4)
	appendKind("socks5", raw.SOCKS5)
	appendKind("tcppm", raw.TCPPM)

	if len(entries) == 0 {
		return nil, fmt.Errorf("config: at least one listener entry is required")
	}

	seenPorts := make(map[int]string, len(entries))

	for _, e := range entries {
		if e.Port < 1 || e.Port > 65535 {
			return nil, fmt.Errorf("config: %s.%s: port %d out of range (1-65535)", e.Kind, e.Name, e.Port)
		}

		if e.Kind == "tcppm" && e.Target == "" {
			return nil, fmt.Errorf("config: tcppm.%s: 'target' is required", e.Name)
		}
		if e.Kind != "tcppm" && e.Target != "" {
			return nil, fmt.Errorf("config: %s.%s: 'target' is only valid for tcppm listeners", e.Kind, e.Name)
		}

		if prior, ok := seenPorts[e.Port]; ok {
			return nil, fmt.Errorf("config: %s.%s: duplicate port %d (already used by %s)", e.Kind, e.Name, e.Port, prior)
		}
		seenPorts[e.Port] = fmt.Sprintf("%s.%s", e.Kind, e.Name)
	}

	return &Config{Listeners: entries}, nil
}
