package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/simcore/simcore/internal/adapters/lockstep"
	"github.com/simcore/simcore/internal/adapters/metrics"
	"github.com/simcore/simcore/internal/adapters/persistence"
	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/application/scheduler"
	"github.com/simcore/simcore/internal/domain/commandlog"
	"github.com/simcore/simcore/internal/domain/dispatch"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/terrain"
	"github.com/simcore/simcore/internal/domain/world"
	"github.com/simcore/simcore/internal/infrastructure/config"
	"github.com/simcore/simcore/internal/infrastructure/database"
	"github.com/simcore/simcore/internal/infrastructure/pidfile"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

// NewServerRootCommand builds the simcore-server command tree.
func NewServerRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simcore-server",
		Short: "Run the simcore authoritative lockstep server",
		Long: `simcore-server hosts the deterministic city simulation (spec.md §4)
and accepts lockstep client connections (spec.md §4.11).

Examples:
  simcore-server --config /etc/simcore/config.yaml
  simcore-server run`,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.AddCommand(newServerRunCommand())
	return cmd
}

func newServerRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the server and block until shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runServer(cfg)
		},
	}
}

// runServer wires the whole simulation (world, map, market, scheduler),
// the command dispatch mediator, persistence, and the lockstep transport,
// then blocks advancing ticks until a shutdown signal arrives. Grounded on
// the teacher's cmd/spacetraders-daemon/main.go run(cfg) function: one
// free function doing all construction, each fallible step checked and
// wrapped with fmt.Errorf before continuing.
func runServer(cfg *config.Config) error {
	logger := common.NewConsoleLogger()

	pf := pidfile.New(cfg.Daemon.PIDFile)
	if err := pf.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire pid file: %w", err)
	}
	defer pf.Release()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	heightmap := terrain.NewHeightmap()
	m := mapmodel.NewMap(heightmap)
	w := world.New()
	mkt := market.New()
	dispatchReg := dispatch.NewRegistry()
	rngProvider := rng.New(cfg.Simulation.Seed)
	clock := simtime.NewClock(0)

	sched := scheduler.New(w, m, mkt, dispatchReg, clock, rngProvider, logger)

	med := common.NewMediator()
	handlers := &commandlog.Handlers{World: w, Map: m, Market: mkt, Clock: clock, RNG: rngProvider, Logger: logger}
	if err := handlers.Register(med); err != nil {
		return fmt.Errorf("failed to register command handlers: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	cmdMetrics := metrics.NewCommandMetricsCollector()
	if err := cmdMetrics.Register(); err != nil {
		return fmt.Errorf("failed to register command metrics: %w", err)
	}
	med.RegisterMiddleware(metrics.PrometheusMiddleware(cmdMetrics))

	cmdLog := commandlog.New(med)
	cmdLog.EnableReplay(cfg.Simulation.ReplayEnabled)

	var worldMu sync.Mutex
	snapshotRepo := persistence.NewSnapshotRepository(db)
	worldSource := persistence.NewLiveWorldSource(&worldMu, w, mkt, rngProvider, clock.Tick)

	tcpListener, err := net.Listen("tcp", cfg.Network.TCPAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Network.TCPAddress, err)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Network.UDPAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve udp address %s: %w", cfg.Network.UDPAddress, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on udp %s: %w", cfg.Network.UDPAddress, err)
	}

	netMetrics := metrics.NewNetworkMetricsCollector()
	if err := netMetrics.Register(); err != nil {
		return fmt.Errorf("failed to register network metrics: %w", err)
	}

	lsServer := lockstep.NewServer(tcpListener, udpConn, worldSource, lockstep.ServerConfig{
		Version:           "simcore-1",
		TickPeriod:        time.Duration(float64(time.Second) * simtime.TickPeriod),
		FBA:               cfg.Network.FBA,
		WorldFragmentSize: cfg.Network.WorldFragmentSize,
		HandshakeTimeout:  cfg.Network.HandshakeTimeout,
		HistoryRetention:  cfg.Network.HistoryRetention,
		Logger:            logger,
		Metrics:           netMetrics,
	})

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("shutdown signal received")
		lsServer.Close()
		cancel()
	}()

	go func() {
		if err := lsServer.Serve(); err != nil {
			logger.Errorf("lockstep server stopped: %v", err)
		}
	}()

	fmt.Printf("simcore-server listening tcp=%s udp=%s\n", cfg.Network.TCPAddress, cfg.Network.UDPAddress)

	hz := cfg.Simulation.TickHz
	if hz <= 0 {
		hz = simtime.TicksPerRealSecond
	}
	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	snapshotEvery := simtime.Tick(hz * snapshotIntervalSeconds)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		worldMu.Lock()
		tick := clock.Tick()
		for _, in := range lsServer.Tick(tick) {
			for _, cmd := range in.Commands {
				cmdLog.Push(tick, uint64(in.AuthentID), cmd)
			}
		}
		for _, applyErr := range cmdLog.ApplyTick(ctx, tick) {
			logger.Warnf("command apply error: %v", applyErr)
		}
		sched.Tick(ctx)

		var snap persistence.WorldSnapshot
		takeSnapshot := snapshotEvery > 0 && tick%snapshotEvery == 0
		if takeSnapshot {
			var snapErr error
			snap, snapErr = persistence.Capture(w, mkt, rngProvider, tick)
			if snapErr != nil {
				logger.Errorf("snapshot capture failed: %v", snapErr)
				takeSnapshot = false
			}
		}
		worldMu.Unlock()

		if takeSnapshot {
			if _, err := snapshotRepo.Save(ctx, snap); err != nil {
				logger.Errorf("snapshot save failed: %v", err)
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// snapshotIntervalSeconds is how often runServer persists a world
// snapshot while running (spec.md §4.12); tuned for demo/CLI use rather
// than a production retention policy.
const snapshotIntervalSeconds = 60

func serveMetrics(cfg *config.Config, logger common.SimLogger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	addr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
	logger.Infof("metrics listening on %s%s", addr, cfg.Metrics.Path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics server stopped: %v", err)
	}
}
