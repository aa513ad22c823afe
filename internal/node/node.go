package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"artnet-node/internal/artnet"
	"artnet-node/internal/config"
	"artnet-node/internal/metrics"
)

// pollFlagTargeted is ArtPoll Flags bit 5: only nodes with a port inside the
// target range should reply.
const pollFlagTargeted = 0x20

// Frame is one ArtDmx frame addressed to this node. Data is owned by the frame.
type Frame struct {
	PortAddress artnet.PortAddress
	Sequence    uint8
	Physical    uint8
	Data        []byte
	Source      netip.AddrPort
	ReceivedAt  time.Time
}

// SyncEvent is an ArtSync received from a controller
type SyncEvent struct {
	Source     netip.AddrPort
	ReceivedAt time.Time
}

// Node listens for Art-Net traffic, answers discovery and hands DMX frames to consumers
type Node struct {
	cfg     config.NodeConfig
	logger  *zap.Logger
	metrics *metrics.NodeMetrics
	limiter *replyLimiter
	ports   map[uint16]artnet.PortAddress

	frames chan *Frame
	syncs  chan SyncEvent

	// sendBuf is only touched by the read loop
	sendBuf [artnet.PollReplySize]byte

	mu         sync.RWMutex
	reply      artnet.PollReply
	replyCount uint64
	started    bool
	conn       *ipv4.PacketConn
	rawConn    net.PacketConn
	// done is closed when the current run stops
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a node that answers ArtPoll with reply
func New(cfg config.NodeConfig, reply artnet.PollReply, logger *zap.Logger, m *metrics.NodeMetrics) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNodeMetrics(nil)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	if cfg.BufferSize < artnet.PollReplySize {
		cfg.BufferSize = 65507
	}

	ports := make(map[uint16]artnet.PortAddress, len(cfg.Ports))
	for _, p := range cfg.Ports {
		addr := p.PortAddress()
		ports[addr.Wire()] = addr
	}

	return &Node{
		cfg:     cfg,
		logger:  logger.Named("node"),
		metrics: m,
		limiter: newReplyLimiter(cfg.ReplyRate, cfg.ReplyBurst, cfg.LimiterIdle),
		ports:   ports,
		frames:  make(chan *Frame, queueSize),
		syncs:   make(chan SyncEvent, 16),
		reply:   reply,
	}
}

// Frames returns the channel of received DMX frames
func (n *Node) Frames() <-chan *Frame {
	return n.frames
}

// Syncs returns the channel of received ArtSync events
func (n *Node) Syncs() <-chan SyncEvent {
	return n.syncs
}

// Reply returns a copy of the ArtPollReply the node currently sends
func (n *Node) Reply() artnet.PollReply {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.reply
}

// ReplyCount returns how many ArtPollReply packets have been sent successfully
func (n *Node) ReplyCount() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.replyCount
}

// LocalAddr returns the bound address, or nil before Start
func (n *Node) LocalAddr() net.Addr {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.rawConn == nil {
		return nil
	}
	return n.rawConn.LocalAddr()
}

// Start binds the UDP socket and begins processing packets until ctx is done
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("node already started")
	}

	addr := net.JoinHostPort(n.cfg.Listen, strconv.Itoa(n.cfg.Port))
	conn, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	n.rawConn = conn
	n.conn = ipv4.NewPacketConn(conn)

	// Destination and interface tell unicast polls from broadcast ones in the logs
	if err := n.conn.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
		n.logger.Warn("could not enable control messages", zap.Error(err))
	}

	n.started = true
	n.done = make(chan struct{})
	n.logger.Info("listening", zap.Stringer("addr", conn.LocalAddr()), zap.Int("ports", len(n.ports)))

	n.wg.Add(1)
	go n.readPackets(n.conn)
	go n.watchContext(ctx, n.conn, n.done)

	return nil
}

// watchContext stops the run bound to conn when ctx ends. It exits without
// stopping anything once that run has been stopped.
func (n *Node) watchContext(ctx context.Context, conn *ipv4.PacketConn, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		n.stop(conn)
	case <-done:
	}
}

// Stop closes the socket and waits for the read loop to exit
func (n *Node) Stop() {
	n.stop(nil)
}

// stop ends the current run. A non-nil conn only stops the run that owns it.
func (n *Node) stop(conn *ipv4.PacketConn) {
	n.mu.Lock()
	if conn != nil && n.conn != conn {
		n.mu.Unlock()
		return
	}
	if n.rawConn != nil {
		n.rawConn.Close()
		n.rawConn = nil
		n.conn = nil
	}
	if n.done != nil {
		close(n.done)
		n.done = nil
	}
	n.started = false
	n.mu.Unlock()

	n.wg.Wait()
}

// readPackets continuously reads datagrams from the socket
func (n *Node) readPackets(conn *ipv4.PacketConn) {
	defer n.wg.Done()
	buf := make([]byte, n.cfg.BufferSize)

	for {
		nr, cm, src, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || n.closed(conn) {
				n.logger.Debug("read loop stopped")
				return
			}
			n.logger.Warn("read failed", zap.Error(err))
			continue
		}

		n.handlePacket(conn, buf[:nr], src, cm)
	}
}

// closed reports whether conn is no longer the node's active socket
func (n *Node) closed(conn *ipv4.PacketConn) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.conn != conn
}

// handlePacket decodes one datagram and acts on it. data is reused after return.
func (n *Node) handlePacket(conn *ipv4.PacketConn, data []byte, src net.Addr, cm *ipv4.ControlMessage) {
	source := addrPortOf(src)

	msg, err := artnet.Decode(data)
	if err != nil {
		n.metrics.DecodeErrors.WithLabelValues(errorKind(err)).Inc()
		n.logger.Debug("dropping packet", zap.Stringer("source", source), zap.Int("len", len(data)), zap.Error(err))
		return
	}
	n.metrics.PacketsReceived.WithLabelValues(msg.OpCode().String()).Inc()

	switch m := msg.(type) {
	case *artnet.Poll:
		n.handlePoll(conn, m, src, source, cm)
	case *artnet.Dmx:
		n.handleDmx(m, source)
	case *artnet.Sync:
		n.metrics.SyncTotal.Inc()
		select {
		case n.syncs <- SyncEvent{Source: source, ReceivedAt: time.Now()}:
		default:
		}
	case *artnet.Command:
		n.metrics.CommandsTotal.Inc()
		n.logger.Info("command received",
			zap.Stringer("source", source),
			zap.Stringer("esta", m.ESTAManufacturerCode),
			zap.Int("len", len(m.Data)))
	}
}

func (n *Node) handlePoll(conn *ipv4.PacketConn, poll *artnet.Poll, dst net.Addr, source netip.AddrPort, cm *ipv4.ControlMessage) {
	fields := []zap.Field{
		zap.Stringer("controller", source),
		zap.Uint8("flags", poll.Flags),
		zap.Uint8("priority", poll.MinDiagnosticPriority),
	}
	if cm != nil {
		fields = append(fields, zap.Stringer("dst", cm.Dst), zap.Int("ifindex", cm.IfIndex))
	}

	if poll.Flags&pollFlagTargeted != 0 && !n.servesRange(poll.Targets) {
		n.metrics.PollReplies.WithLabelValues("skipped").Inc()
		n.logger.Debug("targeted poll outside our ports", fields...)
		return
	}

	if !n.limiter.Allow(source.Addr(), time.Now()) {
		n.metrics.PollReplies.WithLabelValues("limited").Inc()
		n.logger.Debug("poll reply rate limited", fields...)
		return
	}

	size, err := n.encodeReply()
	if err != nil {
		n.metrics.PollReplies.WithLabelValues("error").Inc()
		n.logger.Error("encode poll reply", append(fields, zap.Error(err))...)
		return
	}

	if _, err := conn.WriteTo(n.sendBuf[:size], nil, dst); err != nil {
		n.metrics.PollReplies.WithLabelValues("error").Inc()
		n.logger.Warn("send poll reply", append(fields, zap.Error(err))...)
		return
	}

	n.mu.Lock()
	n.replyCount++
	n.mu.Unlock()
	n.metrics.PollReplies.WithLabelValues("sent").Inc()
	n.logger.Info("sent poll reply", fields...)
}

// encodeReply writes the next reply into sendBuf. The report counter is the
// number this reply will have once sent.
func (n *Node) encodeReply() (int, error) {
	n.mu.RLock()
	reply := n.reply
	count := n.replyCount + 1
	n.mu.RUnlock()

	if reply.NodeReport == "" {
		// #RcCode [counter] text, RcPowerOk
		reply.NodeReport = fmt.Sprintf("#0001 [%04d] Power On Tests successful", count%10000)
	}
	return reply.MarshalTo(n.sendBuf[:])
}

// servesRange reports whether any local port falls in r. A node without ports
// monitors every universe and so serves every range.
func (n *Node) servesRange(r artnet.AddressRange) bool {
	if len(n.ports) == 0 {
		return true
	}
	for wire := range n.ports {
		if r.Contains(wire) {
			return true
		}
	}
	return false
}

func (n *Node) handleDmx(dmx *artnet.Dmx, source netip.AddrPort) {
	if len(n.ports) > 0 {
		if _, ok := n.ports[dmx.PortAddress.Wire()]; !ok {
			return
		}
	}

	// dmx.Data points into the receive buffer
	data := make([]byte, len(dmx.Data))
	copy(data, dmx.Data)

	frame := &Frame{
		PortAddress: dmx.PortAddress,
		Sequence:    dmx.Sequence,
		Physical:    dmx.Physical,
		Data:        data,
		Source:      source,
		ReceivedAt:  time.Now(),
	}

	select {
	case n.frames <- frame:
		n.metrics.DmxFrames.Inc()
	default:
		n.metrics.DmxFramesDropped.Inc()
	}
}

func addrPortOf(addr net.Addr) netip.AddrPort {
	if udp, ok := addr.(*net.UDPAddr); ok {
		ap := udp.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}

func errorKind(err error) string {
	var versionErr *artnet.UnsupportedProtocolVersionError
	var opErr *artnet.UnsupportedOpCodeError
	switch {
	case errors.As(err, &versionErr):
		return "version"
	case errors.As(err, &opErr):
		return "opcode"
	default:
		return "parse"
	}
}
