package stats

import (
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"
)

// Constants for loss tracking
const (
	// lossWindowDuration is the time window for recent loss calculation
	lossWindowDuration = time.Minute
	// sourceRestartThreshold is the sequence gap above which we assume source restart
	sourceRestartThreshold = 200
	// sequenceCycle is the number of usable ArtDmx sequence values (1-255)
	sequenceCycle = 255
)

// PacketEvent records a packet reception event for sliding window tracking
type PacketEvent struct {
	Timestamp time.Time
	Received  uint64 // packets received in this event
	Lost      uint64 // packets lost detected in this event
}

// SourceID identifies one DMX stream: a controller and its physical input port
type SourceID struct {
	Addr     netip.Addr
	Physical uint8
}

func (id SourceID) String() string {
	return fmt.Sprintf("%s/%d", id.Addr, id.Physical)
}

// Source represents a unique Art-Net source
type Source struct {
	ID           SourceID
	LastSequence uint8
	LastSeen     time.Time
	PacketCount  uint64
	LostPackets  uint64
}

// UniverseStats tracks statistics for a single universe
type UniverseStats struct {
	UniverseID      uint16
	Sources         map[SourceID]*Source
	PacketCount     uint64
	LostPackets     uint64
	LastPacket      time.Time
	packetsInWindow []time.Time   // For rate calculation
	lossWindow      []PacketEvent // For sliding window loss calculation
	mu              sync.RWMutex
}

// Tracker tracks packet statistics for all universes
type Tracker struct {
	universes  map[uint16]*UniverseStats
	rateWindow time.Duration
	mu         sync.RWMutex
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	return &Tracker{
		universes:  make(map[uint16]*UniverseStats),
		rateWindow: time.Second, // Calculate rate over 1 second window
	}
}

// RecordPacket records a packet for statistics tracking. universeID is the
// 15-bit Port-Address. A sequence of 0 means the source does not number its
// frames, so no loss is counted for it.
func (t *Tracker) RecordPacket(universeID uint16, sourceID SourceID, sequence uint8) {
	t.mu.Lock()
	stats, exists := t.universes[universeID]
	if !exists {
		stats = &UniverseStats{
			UniverseID: universeID,
			Sources:    make(map[SourceID]*Source),
		}
		t.universes[universeID] = stats
	}
	t.mu.Unlock()

	stats.mu.Lock()
	defer stats.mu.Unlock()

	now := time.Now()
	stats.PacketCount++
	stats.LastPacket = now

	// Add to rate window
	stats.packetsInWindow = append(stats.packetsInWindow, now)

	// Clean old packets from window
	cutoff := now.Add(-t.rateWindow)
	newWindow := stats.packetsInWindow[:0]
	for _, pt := range stats.packetsInWindow {
		if pt.After(cutoff) {
			newWindow = append(newWindow, pt)
		}
	}
	stats.packetsInWindow = newWindow

	// Track source
	source, sourceExists := stats.Sources[sourceID]
	if !sourceExists {
		source = &Source{ID: sourceID}
		stats.Sources[sourceID] = source
	}

	// Check for packet loss (sequence gap)
	var lostThisPacket uint64
	if sourceExists && source.PacketCount > 0 && sequence != 0 && source.LastSequence != 0 {
		// Sequence runs 1..255 and wraps to 1, skipping 0
		expectedSeq := source.LastSequence%sequenceCycle + 1
		if sequence != expectedSeq {
			lost := (int(sequence) - int(expectedSeq) + sequenceCycle) % sequenceCycle
			// If gap is too large, assume source restart rather than massive loss
			if lost < sourceRestartThreshold {
				lostThisPacket = uint64(lost)
				source.LostPackets += lostThisPacket
				stats.LostPackets += lostThisPacket
			}
			// If lost >= sourceRestartThreshold, we treat it as a restart
			// and don't count any loss
		}
	}

	// Record event for sliding window loss tracking
	stats.lossWindow = append(stats.lossWindow, PacketEvent{
		Timestamp: now,
		Received:  1,
		Lost:      lostThisPacket,
	})

	// Clean old events from loss window
	lossCutoff := now.Add(-lossWindowDuration)
	newLossWindow := stats.lossWindow[:0]
	for _, evt := range stats.lossWindow {
		if evt.Timestamp.After(lossCutoff) {
			newLossWindow = append(newLossWindow, evt)
		}
	}
	stats.lossWindow = newLossWindow

	source.LastSequence = sequence
	source.LastSeen = now
	source.PacketCount++
}

// UniverseSummary is a snapshot of a universe's counters (no mutex needed)
type UniverseSummary struct {
	UniverseID  uint16
	PacketCount uint64
	LostPackets uint64
	LastPacket  time.Time
}

// GetUniverseStats returns a snapshot of the counters for a universe, or nil if
// it has never been seen
func (t *Tracker) GetUniverseStats(universeID uint16) *UniverseSummary {
	t.mu.RLock()
	stats := t.universes[universeID]
	t.mu.RUnlock()

	if stats == nil {
		return nil
	}

	stats.mu.RLock()
	defer stats.mu.RUnlock()

	return &UniverseSummary{
		UniverseID:  stats.UniverseID,
		PacketCount: stats.PacketCount,
		LostPackets: stats.LostPackets,
		LastPacket:  stats.LastPacket,
	}
}

// GetPacketRate returns packets per second for a universe
func (t *Tracker) GetPacketRate(universeID uint16) float64 {
	t.mu.RLock()
	stats := t.universes[universeID]
	t.mu.RUnlock()

	if stats == nil {
		return 0
	}

	stats.mu.RLock()
	defer stats.mu.RUnlock()

	// Clean old packets and count
	now := time.Now()
	cutoff := now.Add(-t.rateWindow)
	count := 0
	for _, pt := range stats.packetsInWindow {
		if pt.After(cutoff) {
			count++
		}
	}

	return float64(count) / t.rateWindow.Seconds()
}

// GetLossPercentage returns cumulative packet loss percentage for a universe
func (t *Tracker) GetLossPercentage(universeID uint16) float64 {
	t.mu.RLock()
	stats := t.universes[universeID]
	t.mu.RUnlock()

	if stats == nil {
		return 0
	}

	stats.mu.RLock()
	defer stats.mu.RUnlock()

	totalExpected := stats.PacketCount + stats.LostPackets
	if totalExpected == 0 {
		return 0
	}

	return float64(stats.LostPackets) / float64(totalExpected) * 100
}

// GetRecentLossPercentage returns packet loss percentage for the last minute
func (t *Tracker) GetRecentLossPercentage(universeID uint16) float64 {
	t.mu.RLock()
	stats := t.universes[universeID]
	t.mu.RUnlock()

	if stats == nil {
		return 0
	}

	stats.mu.RLock()
	defer stats.mu.RUnlock()

	// Sum up received and lost from the sliding window
	now := time.Now()
	cutoff := now.Add(-lossWindowDuration)

	var totalReceived, totalLost uint64
	for _, evt := range stats.lossWindow {
		if evt.Timestamp.After(cutoff) {
			totalReceived += evt.Received
			totalLost += evt.Lost
		}
	}

	totalExpected := totalReceived + totalLost
	if totalExpected == 0 {
		return 0
	}

	return float64(totalLost) / float64(totalExpected) * 100
}

// GetSourceLossPercentage returns packet loss percentage for a specific source
func (t *Tracker) GetSourceLossPercentage(universeID uint16, sourceID SourceID) float64 {
	t.mu.RLock()
	stats := t.universes[universeID]
	t.mu.RUnlock()

	if stats == nil {
		return 0
	}

	stats.mu.RLock()
	defer stats.mu.RUnlock()

	source, exists := stats.Sources[sourceID]
	if !exists {
		return 0
	}

	totalExpected := source.PacketCount + source.LostPackets
	if totalExpected == 0 {
		return 0
	}

	return float64(source.LostPackets) / float64(totalExpected) * 100
}

// RemoveUniverse forgets everything tracked for a universe
func (t *Tracker) RemoveUniverse(universeID uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.universes, universeID)
}

// GetSources returns all sources for a universe, ordered by address then physical port
func (t *Tracker) GetSources(universeID uint16) []Source {
	t.mu.RLock()
	stats := t.universes[universeID]
	t.mu.RUnlock()

	if stats == nil {
		return nil
	}

	stats.mu.RLock()
	defer stats.mu.RUnlock()

	sources := make([]Source, 0, len(stats.Sources))
	for _, s := range stats.Sources {
		sources = append(sources, *s)
	}
	sort.Slice(sources, func(i, j int) bool {
		if c := sources[i].ID.Addr.Compare(sources[j].ID.Addr); c != 0 {
			return c < 0
		}
		return sources[i].ID.Physical < sources[j].ID.Physical
	})
	return sources
}
