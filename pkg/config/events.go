package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxEventsFileSize = 1024 * 1024

// EventTable maps an event kind to the static fields merged into its outbound envelope.
type EventTable map[string]map[string]any

// Lookup returns a copy of the block configured for kind, or nil.
func (t EventTable) Lookup(kind string) map[string]any {
	block, ok := t[kind]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(block))
	for k, v := range block {
		out[k] = v
	}
	return out
}

// LoadEventTable reads the per-event configuration file:
//
//	events:
//	  created:
//	    playbook: deploy.yml
//	  start:
//	    playbook: command.yml
func LoadEventTable(path string) (EventTable, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("events config path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat events config: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("events config %s is a directory", path)
	}
	if info.Size() > maxEventsFileSize {
		return nil, fmt.Errorf("events config %s exceeds %d bytes", path, maxEventsFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events config: %w", err)
	}
	return ParseEventTable(content)
}

// ParseEventTable parses YAML content into an EventTable.
func ParseEventTable(content []byte) (EventTable, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse events config: %w", err)
	}
	table := EventTable{}
	if !k.Exists("events") {
		return table, nil
	}
	if err := k.Unmarshal("events", &table); err != nil {
		return nil, fmt.Errorf("decode events config: %w", err)
	}
	for kind, block := range table {
		if block == nil {
			table[kind] = map[string]any{}
		}
	}
	return table, nil
}
