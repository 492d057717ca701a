// Package translation keeps keyword translations for the back face of labels.
package translation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Placeholder is the text the translate service answers while a word is
// still being translated. It is never stored.
const Placeholder = "翻译中..."

// Word is one entry of the translate service wire format
type Word struct {
	En string `json:"en"`
	Zh string `json:"zh"`
}

// Table is a concurrency-safe keyword to translation map. Keys are matched
// case-insensitively.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{entries: make(map[string]string)}
}

func key(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

func usable(translated string) bool {
	t := strings.TrimSpace(translated)
	return t != "" && t != Placeholder
}

// Set stores a translation. Empty and placeholder translations are ignored.
func (t *Table) Set(word, translated string) bool {
	k := key(word)
	if k == "" || !usable(translated) {
		return false
	}
	t.mu.Lock()
	t.entries[k] = strings.TrimSpace(translated)
	t.mu.Unlock()
	return true
}

// Merge stores every usable entry and returns how many were stored
func (t *Table) Merge(words []Word) int {
	n := 0
	for _, w := range words {
		if t.Set(w.En, w.Zh) {
			n++
		}
	}
	return n
}

// Lookup returns the translation of word
func (t *Table) Lookup(word string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[key(word)]
	return v, ok
}

// Len returns the number of stored translations
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Missing returns the words that have no translation yet, in input order
// and without duplicates
func (t *Table) Missing(words []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		k := key(w)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := t.entries[k]; !ok {
			out = append(out, w)
		}
	}
	return out
}

// LoadFile reads translations from a JSON file. Both the service format
// [{"en":"dog","zh":"狗"}] and a plain {"dog":"狗"} object are accepted.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read translations: %w", err)
	}
	return Parse(data)
}

// Parse decodes translations in either of the LoadFile formats
func Parse(data []byte) (*Table, error) {
	t := NewTable()

	var words []Word
	if err := json.Unmarshal(data, &words); err == nil {
		t.Merge(words)
		return t, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse translations: %w", err)
	}
	for k, v := range m {
		t.Set(k, v)
	}
	return t, nil
}
