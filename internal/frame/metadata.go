package frame

import (
	"math"
	"strconv"
	"strings"
	"sync"
)

// Card is one header entry: a key, its value and a human-readable comment.
type Card struct {
	Key     string      `json:"key"`
	Value   interface{} `json:"value"`
	Comment string      `json:"comment,omitempty"`
}

// Metadata is an ordered, case-insensitive card list.
//
// Metadata is safe for concurrent use. Set is the only mutation the
// analysis performs on a frame (the geometry cache write-back).
type Metadata struct {
	mu    sync.RWMutex
	cards []Card
	index map[string]int
}

// NewMetadata returns an empty card list.
func NewMetadata() *Metadata {
	return &Metadata{index: make(map[string]int)}
}

// Set adds a card or replaces the value and comment of an existing one.
func (m *Metadata) Set(key string, value interface{}, comment string) {
	key = strings.ToUpper(strings.TrimSpace(key))
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[key]; ok {
		m.cards[i].Value = value
		m.cards[i].Comment = comment
		return
	}
	m.index[key] = len(m.cards)
	m.cards = append(m.cards, Card{Key: key, Value: value, Comment: comment})
}

// Get returns the raw value stored under key.
func (m *Metadata) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[strings.ToUpper(key)]
	if !ok {
		return nil, false
	}
	return m.cards[i].Value, true
}

// Has reports whether key is present.
func (m *Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Comment returns the comment attached to key, or "".
func (m *Metadata) Comment(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.index[strings.ToUpper(key)]; ok {
		return m.cards[i].Comment
	}
	return ""
}

// Float returns the value under key as a float64. Integer values and
// numeric strings convert; anything else reports false.
func (m *Metadata) Float(key string) (float64, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns the value under key rounded to an int, or def when missing.
func (m *Metadata) Int(key string, def int) int {
	f, ok := m.Float(key)
	if !ok {
		return def
	}
	return int(math.Round(f))
}

// String returns the value under key as a trimmed string.
func (m *Metadata) String(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s), true
	}
	return "", false
}

// Cards returns a copy of the cards in insertion order.
func (m *Metadata) Cards() []Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Card, len(m.cards))
	copy(out, m.cards)
	return out
}
