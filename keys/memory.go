package keys

import (
	"crypto/rsa"
	"sort"
	"sync"
)

// Memory keeps keypairs in process memory. The zero value is ready to use.
type Memory struct {
	mu   sync.Mutex
	keys map[string]*rsa.PrivateKey
}

var (
	_ Provider = &Memory{}
	_ Lister   = &Memory{}
)

func NewMemory() *Memory {
	return &Memory{keys: map[string]*rsa.PrivateKey{}}
}

// LoadOrGenerate implements Provider.
func (m *Memory) LoadOrGenerate(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if key, ok := m.keys[identity]; ok {
		return &key.PublicKey, key, nil
	}
	key, err := Generate()
	if err != nil {
		return nil, nil, err
	}
	if m.keys == nil {
		m.keys = make(map[string]*rsa.PrivateKey)
	}
	m.keys[identity] = key
	return &key.PublicKey, key, nil
}

// Load implements Provider.
func (m *Memory) Load(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[identity]
	if !ok {
		return nil, nil, ErrKeyNotFound
	}
	return &key.PublicKey, key, nil
}

// Identities implements Lister.
func (m *Memory) Identities() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.keys))
	for id := range m.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
