package tui

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"artnet-node/internal/artnet"
	"artnet-node/internal/stats"
	"artnet-node/internal/universe"
)

func newTestModel() (Model, *universe.Manager) {
	um := universe.NewManager()
	node := NodeInfo{
		ShortName: "test-node",
		Listen:    "0.0.0.0:6454",
		Ports:     []artnet.PortAddress{{Universe: 1}},
	}
	m := NewModel(um, stats.NewTracker(), node, time.Second)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), um
}

func TestModel_ViewWaiting(t *testing.T) {
	m, _ := newTestModel()

	view := m.View()
	for _, want := range []string{"Art-Net Node: test-node", "Waiting for ArtDmx data", "0.0.0.0:6454", "Output ports: 0:0:1"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_ViewUniverse(t *testing.T) {
	m, um := newTestModel()

	addr := artnet.PortAddress{Net: 1, SubNet: 2, Universe: 3}
	um.GetOrCreate(addr.Wire()).Update([]byte{255, 0, 10}, netip.MustParseAddrPort("10.0.0.9:6454"), 0, 1)

	updated, _ := m.Update(TickMsg(time.Now()))
	m = updated.(Model)

	if m.selectedUniverse != addr.Wire() {
		t.Fatalf("selectedUniverse = %#04x, want %#04x", m.selectedUniverse, addr.Wire())
	}

	view := m.View()
	for _, want := range []string{"Port 1:2:3", "10.0.0.9:6454", "Active: 3/512"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_TabCycles(t *testing.T) {
	m, um := newTestModel()
	um.GetOrCreate(1)
	um.GetOrCreate(2)

	updated, _ := m.Update(TickMsg(time.Now()))
	m = updated.(Model)
	if m.selectedUniverse != 1 {
		t.Fatalf("selectedUniverse = %d, want 1", m.selectedUniverse)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.selectedUniverse != 2 {
		t.Errorf("selectedUniverse = %d, want 2 after tab", m.selectedUniverse)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.selectedUniverse != 1 {
		t.Errorf("selectedUniverse = %d, want 1 after wrapping", m.selectedUniverse)
	}
}
