package stats

import (
	"net/netip"
	"testing"
	"time"
)

var testSource = SourceID{Addr: netip.MustParseAddr("10.0.0.1"), Physical: 0}

func TestNewTracker(t *testing.T) {
	tracker := NewTracker()

	if tracker == nil {
		t.Fatal("NewTracker() returned nil")
	}

	if stats := tracker.GetUniverseStats(1); stats != nil {
		t.Errorf("GetUniverseStats(1) = %+v, want nil", stats)
	}
}

func TestTracker_RecordPacket(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordPacket(1, testSource, 1)

	stats := tracker.GetUniverseStats(1)
	if stats == nil {
		t.Fatal("GetUniverseStats(1) returned nil")
	}

	if stats.PacketCount != 1 {
		t.Errorf("PacketCount = %d, want 1", stats.PacketCount)
	}

	sources := tracker.GetSources(1)
	if len(sources) != 1 {
		t.Fatalf("len(GetSources(1)) = %d, want 1", len(sources))
	}

	if sources[0].ID != testSource {
		t.Errorf("Source.ID = %v, want %v", sources[0].ID, testSource)
	}

	if sources[0].PacketCount != 1 {
		t.Errorf("Source.PacketCount = %d, want 1", sources[0].PacketCount)
	}
}

func TestTracker_PacketLossDetection_SimpleGap(t *testing.T) {
	tracker := NewTracker()

	// Send sequence 1, then skip to 6 (lost 2, 3, 4, 5)
	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(1, testSource, 6)

	stats := tracker.GetUniverseStats(1)
	if stats.LostPackets != 4 {
		t.Errorf("LostPackets = %d, want 4", stats.LostPackets)
	}

	sources := tracker.GetSources(1)
	if sources[0].LostPackets != 4 {
		t.Errorf("Source.LostPackets = %d, want 4", sources[0].LostPackets)
	}
}

func TestTracker_PacketLossDetection_Wraparound(t *testing.T) {
	tracker := NewTracker()

	// Send sequence 254, then 2 (lost 255, 1; 0 is never used)
	tracker.RecordPacket(1, testSource, 254)
	tracker.RecordPacket(1, testSource, 2)

	stats := tracker.GetUniverseStats(1)
	if stats.LostPackets != 2 {
		t.Errorf("LostPackets = %d, want 2 (255 and 1)", stats.LostPackets)
	}
}

func TestTracker_PacketLossDetection_WrapSkipsZero(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordPacket(1, testSource, 255)
	tracker.RecordPacket(1, testSource, 1)

	stats := tracker.GetUniverseStats(1)
	if stats.LostPackets != 0 {
		t.Errorf("LostPackets = %d, want 0 (255 is followed by 1)", stats.LostPackets)
	}
}

func TestTracker_PacketLossDetection_NoLoss(t *testing.T) {
	tracker := NewTracker()

	// Sequential packets across the wrap - no loss
	for i := 0; i < 300; i++ {
		tracker.RecordPacket(1, testSource, uint8(i%255+1))
	}

	stats := tracker.GetUniverseStats(1)
	if stats.LostPackets != 0 {
		t.Errorf("LostPackets = %d, want 0", stats.LostPackets)
	}

	if stats.PacketCount != 300 {
		t.Errorf("PacketCount = %d, want 300", stats.PacketCount)
	}
}

func TestTracker_SequenceDisabled(t *testing.T) {
	tracker := NewTracker()

	// Sequence 0 means the source does not number frames
	tracker.RecordPacket(1, testSource, 0)
	tracker.RecordPacket(1, testSource, 0)
	tracker.RecordPacket(1, testSource, 0)

	stats := tracker.GetUniverseStats(1)
	if stats.LostPackets != 0 {
		t.Errorf("LostPackets = %d, want 0", stats.LostPackets)
	}

	// Switching tracking on again is not loss either
	tracker.RecordPacket(1, testSource, 50)
	stats = tracker.GetUniverseStats(1)
	if stats.LostPackets != 0 {
		t.Errorf("LostPackets = %d, want 0 after enabling sequence", stats.LostPackets)
	}
}

func TestTracker_GetLossPercentage(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(1, testSource, 4) // Lost 2, 3

	loss := tracker.GetLossPercentage(1)
	// 2 lost out of 4 total expected (2 received + 2 lost) = 50%
	expectedLoss := 50.0
	if loss != expectedLoss {
		t.Errorf("GetLossPercentage(1) = %.2f%%, want %.2f%%", loss, expectedLoss)
	}
}

func TestTracker_GetLossPercentage_NoPackets(t *testing.T) {
	tracker := NewTracker()

	loss := tracker.GetLossPercentage(999)
	if loss != 0 {
		t.Errorf("GetLossPercentage(999) = %.2f, want 0 (no packets)", loss)
	}
}

func TestTracker_GetPacketRate(t *testing.T) {
	tracker := NewTracker()

	// Record multiple packets quickly
	for i := 0; i < 50; i++ {
		tracker.RecordPacket(1, testSource, uint8(i+1))
	}

	rate := tracker.GetPacketRate(1)

	// Rate should be at least 50 (all packets within 1 second window)
	if rate < 50 {
		t.Errorf("GetPacketRate(1) = %.2f, want >= 50", rate)
	}
}

func TestTracker_GetPacketRate_NoPackets(t *testing.T) {
	tracker := NewTracker()

	rate := tracker.GetPacketRate(999)
	if rate != 0 {
		t.Errorf("GetPacketRate(999) = %.2f, want 0", rate)
	}
}

func TestTracker_MultipleSources(t *testing.T) {
	tracker := NewTracker()
	other := SourceID{Addr: netip.MustParseAddr("10.0.0.2")}
	secondPort := SourceID{Addr: testSource.Addr, Physical: 1}

	tracker.RecordPacket(1, other, 1)
	tracker.RecordPacket(1, secondPort, 1)
	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(1, testSource, 2)

	sources := tracker.GetSources(1)
	if len(sources) != 3 {
		t.Fatalf("len(GetSources(1)) = %d, want 3", len(sources))
	}

	// Ordered by address, then physical port
	want := []SourceID{testSource, secondPort, other}
	for i, id := range want {
		if sources[i].ID != id {
			t.Errorf("sources[%d].ID = %v, want %v", i, sources[i].ID, id)
		}
	}

	stats := tracker.GetUniverseStats(1)
	if stats.PacketCount != 4 {
		t.Errorf("PacketCount = %d, want 4", stats.PacketCount)
	}
	if stats.LostPackets != 0 {
		t.Errorf("LostPackets = %d, want 0 (sources are tracked separately)", stats.LostPackets)
	}
}

func TestTracker_MultipleUniverses(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(2, testSource, 1)
	tracker.RecordPacket(0x1234, testSource, 1)

	for _, id := range []uint16{1, 2, 0x1234} {
		stats := tracker.GetUniverseStats(id)
		if stats == nil {
			t.Fatalf("GetUniverseStats(%#x) returned nil", id)
		}
		if stats.UniverseID != id || stats.PacketCount != 1 {
			t.Errorf("GetUniverseStats(%#x) = %+v, want one packet", id, stats)
		}
	}
}

func TestSourceID_String(t *testing.T) {
	id := SourceID{Addr: netip.MustParseAddr("192.168.1.20"), Physical: 3}

	if got := id.String(); got != "192.168.1.20/3" {
		t.Errorf("String() = %q, want %q", got, "192.168.1.20/3")
	}
}

func TestSource_LastSeen(t *testing.T) {
	tracker := NewTracker()

	before := time.Now()
	tracker.RecordPacket(1, testSource, 1)
	after := time.Now()

	sources := tracker.GetSources(1)
	if sources[0].LastSeen.Before(before) || sources[0].LastSeen.After(after) {
		t.Errorf("Source.LastSeen not within expected range")
	}
}

func TestTracker_GetRecentLossPercentage(t *testing.T) {
	tracker := NewTracker()

	// Send 2 packets: 1, then 4 (lost 2, 3) - 50% loss
	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(1, testSource, 4)

	loss := tracker.GetRecentLossPercentage(1)
	expectedLoss := 50.0
	if loss != expectedLoss {
		t.Errorf("GetRecentLossPercentage(1) = %.2f%%, want %.2f%%", loss, expectedLoss)
	}
}

func TestTracker_GetRecentLossPercentage_NoPackets(t *testing.T) {
	tracker := NewTracker()

	loss := tracker.GetRecentLossPercentage(999)
	if loss != 0 {
		t.Errorf("GetRecentLossPercentage(999) = %.2f, want 0 (no packets)", loss)
	}
}

func TestTracker_SourceRestartDetection(t *testing.T) {
	tracker := NewTracker()

	// Send sequence 100, then jump to 50 (gap of 204 - should be treated as restart)
	tracker.RecordPacket(1, testSource, 100)
	tracker.RecordPacket(1, testSource, 50)

	stats := tracker.GetUniverseStats(1)
	if stats.LostPackets != 0 {
		t.Errorf("LostPackets = %d, want 0 (should detect restart, not loss)", stats.LostPackets)
	}

	sources := tracker.GetSources(1)
	if sources[0].LostPackets != 0 {
		t.Errorf("Source.LostPackets = %d, want 0 (should detect restart)", sources[0].LostPackets)
	}
}

func TestTracker_SourceRestartDetection_SmallGapStillCounted(t *testing.T) {
	tracker := NewTracker()

	// Send sequence 1, then 101 (lost 2-100 = 99 packets)
	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(1, testSource, 101)

	stats := tracker.GetUniverseStats(1)
	if stats.LostPackets != 99 {
		t.Errorf("LostPackets = %d, want 99", stats.LostPackets)
	}
}

func TestTracker_GetSourceLossPercentage(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(1, testSource, 4)

	loss := tracker.GetSourceLossPercentage(1, testSource)
	expectedLoss := 50.0
	if loss != expectedLoss {
		t.Errorf("GetSourceLossPercentage(1, testSource) = %.2f%%, want %.2f%%", loss, expectedLoss)
	}
}

func TestTracker_GetSourceLossPercentage_UnknownSource(t *testing.T) {
	tracker := NewTracker()
	unknown := SourceID{Addr: netip.MustParseAddr("10.9.9.9")}

	tracker.RecordPacket(1, testSource, 1)

	loss := tracker.GetSourceLossPercentage(1, unknown)
	if loss != 0 {
		t.Errorf("GetSourceLossPercentage(1, unknown) = %.2f, want 0", loss)
	}
}

func TestTracker_GetUniverseStats_Snapshot(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordPacket(1, testSource, 1)
	before := tracker.GetUniverseStats(1)

	tracker.RecordPacket(1, testSource, 6) // Lost 4 packets

	if before.PacketCount != 1 || before.LostPackets != 0 {
		t.Errorf("earlier snapshot changed: %+v", before)
	}

	after := tracker.GetUniverseStats(1)
	if after.PacketCount != 2 || after.LostPackets != 4 {
		t.Errorf("GetUniverseStats(1) = %+v, want 2 packets and 4 lost", after)
	}
	if after.LastPacket.IsZero() {
		t.Error("LastPacket not set")
	}
}

func TestTracker_RemoveUniverse(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordPacket(1, testSource, 1)
	tracker.RecordPacket(1, testSource, 6)
	tracker.RecordPacket(2, testSource, 1)

	tracker.RemoveUniverse(1)
	tracker.RemoveUniverse(99) // unknown is a no-op

	if stats := tracker.GetUniverseStats(1); stats != nil {
		t.Errorf("GetUniverseStats(1) = %+v, want nil after remove", stats)
	}
	if sources := tracker.GetSources(1); len(sources) != 0 {
		t.Errorf("len(GetSources(1)) = %d, want 0 after remove", len(sources))
	}
	if loss := tracker.GetLossPercentage(1); loss != 0 {
		t.Errorf("GetLossPercentage(1) = %.2f, want 0 after remove", loss)
	}
	if stats := tracker.GetUniverseStats(2); stats == nil || stats.PacketCount != 1 {
		t.Errorf("GetUniverseStats(2) = %+v, want untouched", stats)
	}

	// A returning universe starts from scratch
	tracker.RecordPacket(1, testSource, 200)
	if stats := tracker.GetUniverseStats(1); stats.PacketCount != 1 || stats.LostPackets != 0 {
		t.Errorf("GetUniverseStats(1) = %+v, want a fresh count", stats)
	}
}
