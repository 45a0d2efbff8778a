// Package store provides the key-value persistence port used for wizard
// session snapshots, plus a file-backed implementation with atomic
// writes, backups, and corrupt-payload quarantine.
package store

import "sync"

// KV is the minimal persistence port. Payloads are opaque blobs; codecs
// live with the caller.
type KV interface {
	// Get returns the payload for key. ok is false when no payload
	// exists; err is reserved for I/O failures other than absence.
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Recoverer is implemented by stores that can quarantine a corrupt
// payload and fall back to the last known-good backup. Callers invoke
// it after a decode failure; the returned payload (if any) is the
// backup content.
type Recoverer interface {
	Recover(key string) (value []byte, ok bool)
}

// MemKV is an in-memory KV for tests.
type MemKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
