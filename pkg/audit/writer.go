package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

const (
	// GenesisHash is the hash_prev of the first event in a chain.
	GenesisHash = "sha256:genesis"

	// HashPrefix is prepended to every hash value.
	HashPrefix = "sha256:"
)

// Writer persists audit events.
//
// Write must validate the event, link it to the previous one, and return
// only once the event is durable. An audited operation fails when its
// event cannot be written.
type Writer interface {
	Write(event *Event) error
	Close() error
	// LastHash returns GenesisHash until the first event is written.
	LastHash() string
}

// NopWriter discards all events. It is the writer while auditing is off.
type NopWriter struct{}

var _ Writer = NopWriter{}

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }
func (NopWriter) LastHash() string   { return GenesisHash }

// chain links events through their hashes.
type chain struct {
	last string
}

// link validates event, sets its hash fields and returns its JSON line.
// The chain only advances through commit, once the line is stored.
func (c *chain) link(event *Event) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if c.last == "" {
		c.last = GenesisHash
	}
	event.HashPrev = c.last
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}
	event.Hash = calculateHash(canonical, c.last)
	line, err := jsonLine(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}
	return line, nil
}

func (c *chain) commit(event *Event) { c.last = event.Hash }

func (c *chain) lastHash() string {
	if c.last == "" {
		return GenesisHash
	}
	return c.last
}

// calculateHash computes SHA256(data || prevHash).
func calculateHash(data []byte, prevHash string) string {
	h := sha256.New()
	_, _ = h.Write(data)
	_, _ = h.Write([]byte(prevHash))
	return HashPrefix + hex.EncodeToString(h.Sum(nil))
}

// MemoryWriter keeps the chained JSON lines in memory.
type MemoryWriter struct {
	mu    sync.Mutex
	chain chain
	lines [][]byte
}

var _ Writer = (*MemoryWriter)(nil)

// NewMemoryWriter creates an empty in-memory log.
func NewMemoryWriter() *MemoryWriter { return &MemoryWriter{} }

func (m *MemoryWriter) Write(event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, err := m.chain.link(event)
	if err != nil {
		return err
	}
	m.lines = append(m.lines, line)
	m.chain.commit(event)
	return nil
}

func (m *MemoryWriter) Close() error { return nil }

func (m *MemoryWriter) LastHash() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chain.lastHash()
}

// Bytes returns the log in JSONL form.
func (m *MemoryWriter) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, l := range m.lines {
		out = append(out, l...)
	}
	return out
}
