package universe

import (
	"sort"
	"sync"
	"time"

	"artnet-node/internal/artnet"
)

// Manager manages all universes seen on the node, keyed by wire Port-Address
type Manager struct {
	universes map[uint16]*Universe
	mu        sync.RWMutex
}

// NewManager creates a new universe manager
func NewManager() *Manager {
	return &Manager{
		universes: make(map[uint16]*Universe),
	}
}

// GetOrCreate returns the universe with the given ID, creating it if it doesn't exist
func (m *Manager) GetOrCreate(id uint16) *Universe {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, exists := m.universes[id]; exists {
		return u
	}

	u := NewUniverse(id)
	m.universes[id] = u
	return u
}

// GetByAddress returns the universe for addr, or nil if it doesn't exist
func (m *Manager) GetByAddress(addr artnet.PortAddress) *Universe {
	return m.Get(addr.Wire())
}

// Get returns the universe with the given ID, or nil if it doesn't exist
func (m *Manager) Get(id uint16) *Universe {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.universes[id]
}

// GetAll returns all universes sorted by ID
func (m *Manager) GetAll() []*Universe {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Universe, 0, len(m.universes))
	for _, u := range m.universes {
		result = append(result, u)
	}

	// Sort by universe ID
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// GetActiveUniverses returns all universes that have received data within the timeout
func (m *Manager) GetActiveUniverses(timeout time.Duration) []*Universe {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Universe, 0, len(m.universes))
	for _, u := range m.universes {
		if !u.IsStale(timeout) {
			result = append(result, u)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// MarkSync records an ArtSync against every universe that received data within
// the timeout and returns how many were marked
func (m *Manager) MarkSync(timeout time.Duration) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	marked := 0
	for _, u := range m.universes {
		if !u.IsStale(timeout) {
			u.MarkSync()
			marked++
		}
	}
	return marked
}

// PruneStale removes all universes that haven't received data within the
// timeout and returns their IDs in ascending order
func (m *Manager) PruneStale(timeout time.Duration) []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pruned []uint16
	for id, u := range m.universes {
		if u.IsStale(timeout) {
			delete(m.universes, id)
			pruned = append(pruned, id)
		}
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i] < pruned[j] })
	return pruned
}
