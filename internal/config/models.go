package config

import "strings"

// DefaultModels maps the symbolic model keys offered to instructors to provider ids.
func DefaultModels() map[string]string {
	return map[string]string{
		"GPT-3": "gpt-4-32k-0613",
		"GPT-4": "gpt-4-1106-preview",
	}
}

// ModelTable resolves symbolic model keys case-insensitively.
type ModelTable struct {
	entries map[string]string
}

// NewModelTable builds a table from key to provider model id.
func NewModelTable(entries map[string]string) ModelTable {
	table := ModelTable{entries: make(map[string]string, len(entries))}
	for key, value := range entries {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		table.entries[key] = value
	}
	return table
}

// Resolve returns the provider id for key; unknown keys are returned unchanged.
func (t ModelTable) Resolve(key string) string {
	trimmed := strings.TrimSpace(key)
	if id, ok := t.entries[strings.ToLower(trimmed)]; ok {
		return id
	}
	return trimmed
}

// Keys returns the registered symbolic keys.
func (t ModelTable) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	return keys
}
