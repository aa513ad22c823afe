package universe

import (
	"net/netip"
	"sync"
	"time"

	"artnet-node/internal/artnet"
)

// Channel represents the state of a single DMX channel
type Channel struct {
	Value      uint8     // Current value (0-255)
	Active     bool      // True if channel is included in received packets
	LastUpdate time.Time // When the channel was last updated
}

// Universe represents the state of a single Art-Net Port-Address
type Universe struct {
	ID           uint16 // wire form of Address
	Address      artnet.PortAddress
	Channels     [artnet.MaxDmxChannels]Channel
	SourceAddr   netip.AddrPort
	Physical     uint8
	LastSequence uint8
	LastPacket   time.Time
	PacketCount  uint64
	SyncCount    uint64
	LastSync     time.Time
	mu           sync.RWMutex
}

// NewUniverse creates a new universe for the given wire Port-Address
func NewUniverse(id uint16) *Universe {
	return &Universe{
		ID:      id,
		Address: artnet.PortAddressFromWire(id),
	}
}

// Update updates the universe with new channel data from an ArtDmx frame
func (u *Universe) Update(channelData []byte, source netip.AddrPort, physical uint8, sequence uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := time.Now()

	u.SourceAddr = source
	u.Physical = physical
	u.LastSequence = sequence
	u.LastPacket = now
	u.PacketCount++

	// Update channels that are in the packet
	for i := 0; i < len(channelData) && i < artnet.MaxDmxChannels; i++ {
		u.Channels[i].Value = channelData[i]
		u.Channels[i].Active = true
		u.Channels[i].LastUpdate = now
	}
}

// MarkSync records an ArtSync that latched this universe's outputs
func (u *Universe) MarkSync() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.SyncCount++
	u.LastSync = time.Now()
}

// GetAllChannels returns a copy of all channels
func (u *Universe) GetAllChannels() [artnet.MaxDmxChannels]Channel {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.Channels
}

// Values returns the current value of every channel
func (u *Universe) Values() []uint8 {
	u.mu.RLock()
	defer u.mu.RUnlock()

	values := make([]uint8, len(u.Channels))
	for i, ch := range u.Channels {
		values[i] = ch.Value
	}
	return values
}

// ActiveChannelCount returns the number of channels that are receiving data
func (u *Universe) ActiveChannelCount() int {
	u.mu.RLock()
	defer u.mu.RUnlock()

	count := 0
	for _, ch := range u.Channels {
		if ch.Active {
			count++
		}
	}
	return count
}

// IsStale returns true if the universe hasn't received data for the given duration
func (u *Universe) IsStale(timeout time.Duration) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.LastPacket.IsZero() {
		return true
	}
	return time.Since(u.LastPacket) > timeout
}

// GetInfo returns a snapshot of the universe metadata
func (u *Universe) GetInfo() UniverseInfo {
	u.mu.RLock()
	defer u.mu.RUnlock()

	return UniverseInfo{
		ID:           u.ID,
		Address:      u.Address,
		SourceAddr:   u.SourceAddr,
		Physical:     u.Physical,
		LastSequence: u.LastSequence,
		LastPacket:   u.LastPacket,
		PacketCount:  u.PacketCount,
		SyncCount:    u.SyncCount,
		LastSync:     u.LastSync,
	}
}

// UniverseInfo is a snapshot of universe metadata (no mutex needed)
type UniverseInfo struct {
	ID           uint16
	Address      artnet.PortAddress
	SourceAddr   netip.AddrPort
	Physical     uint8
	LastSequence uint8
	LastPacket   time.Time
	PacketCount  uint64
	SyncCount    uint64
	LastSync     time.Time
}
