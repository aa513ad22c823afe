package httpserver

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"artnet-node/internal/artnet"
	"artnet-node/internal/stats"
	"artnet-node/internal/universe"
)

// NodeStatus is the part of the node the API reports on
type NodeStatus interface {
	Reply() artnet.PollReply
	ReplyCount() uint64
}

// API serves node identity and per-universe state as JSON
type API struct {
	node       NodeStatus
	universes  *universe.Manager
	stats      *stats.Tracker
	staleAfter time.Duration
}

// NewAPI creates the status API
func NewAPI(node NodeStatus, um *universe.Manager, st *stats.Tracker, staleAfter time.Duration) *API {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Second
	}
	return &API{node: node, universes: um, stats: st, staleAfter: staleAfter}
}

func (a *API) register(g *gin.RouterGroup) {
	g.GET("/node", a.getNode)
	g.GET("/universes", a.listUniverses)
	g.GET("/universes/:address", a.getUniverse)
}

type nodeResponse struct {
	ShortName       string   `json:"shortName"`
	LongName        string   `json:"longName"`
	IP              string   `json:"ip"`
	MAC             string   `json:"mac"`
	Port            uint16   `json:"port"`
	FirmwareVersion uint16   `json:"firmwareVersion"`
	OEM             string   `json:"oem"`
	ESTACode        string   `json:"estaCode"`
	Ports           []string `json:"ports"`
	ReplyCount      uint64   `json:"replyCount"`
}

type universeResponse struct {
	Address           string           `json:"address"`
	Wire              uint16           `json:"wire"`
	Net               uint8            `json:"net"`
	SubNet            uint8            `json:"subNet"`
	Universe          uint8            `json:"universe"`
	Source            string           `json:"source"`
	Physical          uint8            `json:"physical"`
	LastSequence      uint8            `json:"lastSequence"`
	LastPacket        time.Time        `json:"lastPacket"`
	PacketCount       uint64           `json:"packetCount"`
	LostPackets       uint64           `json:"lostPackets"`
	SyncCount         uint64           `json:"syncCount"`
	Stale             bool             `json:"stale"`
	Rate              float64          `json:"ratePps"`
	LossPercent       float64          `json:"lossPercent"`
	RecentLossPercent float64          `json:"recentLossPercent"`
	ActiveChannels    int              `json:"activeChannels"`
	Channels          []int            `json:"channels,omitempty"`
	Sources           []sourceResponse `json:"sources,omitempty"`
}

type sourceResponse struct {
	Source       string    `json:"source"`
	Address      string    `json:"address"`
	Physical     uint8     `json:"physical"`
	LastSequence uint8     `json:"lastSequence"`
	LastSeen     time.Time `json:"lastSeen"`
	PacketCount  uint64    `json:"packetCount"`
	LostPackets  uint64    `json:"lostPackets"`
	LossPercent  float64   `json:"lossPercent"`
}

func (a *API) getNode(c *gin.Context) {
	r := a.node.Reply()

	ports := make([]string, 0, r.NumPorts)
	for i := 0; i < int(r.NumPorts) && i < len(r.SwOut); i++ {
		addr := artnet.PortAddress{Net: r.NetSwitch, SubNet: r.SubSwitch, Universe: r.SwOut[i]}
		ports = append(ports, addr.String())
	}

	var esta string
	if r.ESTAManufacturerCode != (artnet.ESTAManufacturerCode{}) {
		esta = r.ESTAManufacturerCode.String()
	}

	c.JSON(http.StatusOK, nodeResponse{
		ShortName:       r.ShortName,
		LongName:        r.LongName,
		IP:              netip.AddrFrom4(r.IPAddress).String(),
		MAC:             net.HardwareAddr(r.MACAddress[:]).String(),
		Port:            r.Port,
		FirmwareVersion: r.FirmwareVersion,
		OEM:             fmt.Sprintf("0x%04x", r.OEM),
		ESTACode:        esta,
		Ports:           ports,
		ReplyCount:      a.node.ReplyCount(),
	})
}

func (a *API) listUniverses(c *gin.Context) {
	all := a.universes.GetAll()
	resp := make([]universeResponse, 0, len(all))
	for _, u := range all {
		resp = append(resp, a.describe(u, false))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) getUniverse(c *gin.Context) {
	wire, err := strconv.ParseUint(c.Param("address"), 0, 16)
	if err != nil || wire > 0x7FFF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address must be a 15-bit Port-Address"})
		return
	}

	u := a.universes.Get(uint16(wire))
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "universe not seen"})
		return
	}
	c.JSON(http.StatusOK, a.describe(u, true))
}

func (a *API) describe(u *universe.Universe, withChannels bool) universeResponse {
	info := u.GetInfo()
	resp := universeResponse{
		Address:           info.Address.String(),
		Wire:              info.ID,
		Net:               info.Address.Net,
		SubNet:            info.Address.SubNet,
		Universe:          info.Address.Universe,
		Source:            info.SourceAddr.String(),
		Physical:          info.Physical,
		LastSequence:      info.LastSequence,
		LastPacket:        info.LastPacket,
		PacketCount:       info.PacketCount,
		SyncCount:         info.SyncCount,
		Stale:             u.IsStale(a.staleAfter),
		ActiveChannels:    u.ActiveChannelCount(),
		Rate:              a.stats.GetPacketRate(info.ID),
		LossPercent:       a.stats.GetLossPercentage(info.ID),
		RecentLossPercent: a.stats.GetRecentLossPercentage(info.ID),
	}
	if summary := a.stats.GetUniverseStats(info.ID); summary != nil {
		resp.LostPackets = summary.LostPackets
	}
	if withChannels {
		// []uint8 would marshal as base64
		values := u.Values()
		resp.Channels = make([]int, len(values))
		for i, v := range values {
			resp.Channels[i] = int(v)
		}

		for _, src := range a.stats.GetSources(info.ID) {
			resp.Sources = append(resp.Sources, sourceResponse{
				Source:       src.ID.String(),
				Address:      src.ID.Addr.String(),
				Physical:     src.ID.Physical,
				LastSequence: src.LastSequence,
				LastSeen:     src.LastSeen,
				PacketCount:  src.PacketCount,
				LostPackets:  src.LostPackets,
				LossPercent:  a.stats.GetSourceLossPercentage(info.ID, src.ID),
			})
		}
	}
	return resp
}
