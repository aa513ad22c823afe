package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"artnet-node/internal/artnet"
	"artnet-node/internal/config"
	"artnet-node/internal/httpserver"
	"artnet-node/internal/logging"
	"artnet-node/internal/metrics"
	"artnet-node/internal/node"
	"artnet-node/internal/stats"
	"artnet-node/internal/tui"
	"artnet-node/internal/universe"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML config file")
	headless := pflag.Bool("headless", false, "run without the terminal UI")
	pflag.Parse()

	// 1) Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *headless {
		cfg.TUI.Enable = false
	}
	if cfg.TUI.Enable {
		// the TUI owns the terminal
		cfg.Logging.Stdout = false
	}

	// 2) Logging
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initialising logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) Metrics
	reg := metrics.NewRegistry()
	nodeMetrics := metrics.NewNodeMetrics(reg)

	// 4) Node
	reply, err := cfg.Node.PollReply()
	if err != nil {
		logger.Fatal("build poll reply", zap.Error(err))
	}
	n := node.New(cfg.Node, reply, logger, nodeMetrics)

	universeManager := universe.NewManager()
	statsTracker := stats.NewTracker()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := n.Start(ctx); err != nil {
		logger.Fatal("start node", zap.Error(err))
	}

	listenAddr := net.JoinHostPort(cfg.Node.Listen, strconv.Itoa(cfg.Node.Port))

	go consumeFrames(ctx, n, universeManager, statsTracker, nodeMetrics, cfg.TUI.StaleAfter, cfg.Node.UniverseTTL)

	// 5) HTTP status and metrics
	var httpSrv *httpserver.Server
	if cfg.HTTP.Enable {
		var metricsHandler http.Handler
		if cfg.Metrics.Enable {
			metricsHandler = metrics.Handler(reg)
		}
		api := httpserver.NewAPI(n, universeManager, statsTracker, cfg.TUI.StaleAfter)
		httpSrv = httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, func() bool { return n.LocalAddr() != nil }, api)

		go func() {
			if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
	}

	// 6) TUI, or wait for a signal
	if cfg.TUI.Enable {
		info := tui.NodeInfo{
			ShortName: reply.ShortName,
			Listen:    listenAddr,
			Ports:     cfg.Node.PortAddresses(),
		}
		model := tui.NewModel(universeManager, statsTracker, info, cfg.TUI.StaleAfter)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("tui error", zap.Error(err))
		}
		cancel()
	} else {
		logger.Info("running headless", zap.String("addr", listenAddr))
		<-ctx.Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	n.Stop()
	logger.Info("stopped")
}

// consumeFrames applies received frames and syncs to universe state and stats
func consumeFrames(ctx context.Context, n *node.Node, um *universe.Manager, st *stats.Tracker, m *metrics.NodeMetrics, staleAfter, ttl time.Duration) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-n.Frames():
			wire := frame.PortAddress.Wire()
			um.GetOrCreate(wire).Update(frame.Data, frame.Source, frame.Physical, frame.Sequence)
			st.RecordPacket(wire, stats.SourceID{Addr: frame.Source.Addr(), Physical: frame.Physical}, frame.Sequence)
		case <-n.Syncs():
			um.MarkSync(staleAfter)
		case <-ticker.C:
			housekeeping(um, st, m, staleAfter, ttl)
		}
	}
}

// housekeeping refreshes the active gauge and forgets universes silent for
// longer than ttl. A ttl of zero keeps them forever.
func housekeeping(um *universe.Manager, st *stats.Tracker, m *metrics.NodeMetrics, staleAfter, ttl time.Duration) {
	if ttl > 0 {
		for _, id := range um.PruneStale(ttl) {
			st.RemoveUniverse(id)
			zap.L().Debug("universe expired", zap.Stringer("address", artnet.PortAddressFromWire(id)))
		}
	}
	m.ActiveUniverses.Set(float64(len(um.GetActiveUniverses(staleAfter))))
}
