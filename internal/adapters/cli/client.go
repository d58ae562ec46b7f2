package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/simcore/simcore/internal/adapters/lockstep"
	"github.com/simcore/simcore/internal/adapters/metrics"
	"github.com/simcore/simcore/internal/adapters/persistence"
	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/application/scheduler"
	"github.com/simcore/simcore/internal/domain/dispatch"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/terrain"
	"github.com/simcore/simcore/internal/infrastructure/config"
)

var (
	serverAddress string
	clientName    string
)

// NewClientRootCommand builds the simcore-client command tree.
func NewClientRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simcore-client",
		Short: "Connect to a simcore lockstep server",
		Long: `simcore-client drives one participant's side of the lockstep protocol
(spec.md §4.11), downloading the world, catching up, then mirroring ticks.

Examples:
  simcore-client connect --server localhost:4450 --name alice`,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.AddCommand(newClientConnectCommand())
	return cmd
}

func newClientConnectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a server and mirror its simulation until disconnected",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			addr, name := resolveClientDefaults()
			if addr != "" {
				cfg.Network.TCPAddress = addr
			}
			if name != "" {
				clientName = name
			}

			return runClient(cfg)
		},
	}
	cmd.Flags().StringVar(&serverAddress, "server", "", "Server TCP address (overrides config/defaults)")
	cmd.Flags().StringVar(&clientName, "name", "", "Client name presented during handshake")
	return cmd
}

// resolveClientDefaults falls back to ~/.simcore/config.json when --server
// or --name were not given on the command line.
func resolveClientDefaults() (address, name string) {
	address, name = serverAddress, clientName
	if address != "" && name != "" {
		return address, name
	}
	handler, err := config.NewUserConfigHandler()
	if err != nil {
		return address, name
	}
	userCfg, err := handler.Load()
	if err != nil {
		return address, name
	}
	if address == "" {
		address = userCfg.DefaultServerAddress
	}
	if name == "" {
		name = userCfg.DefaultClientName
	}
	return address, name
}

// runClient dials the server's TCP and UDP endpoints, wraps them in
// lockstep transports, and drives Client.Poll at the configured tick rate
// until a ResultDisconnect arrives. Grounded on the teacher's run(cfg)
// free-function style; the poll loop itself is grounded on
// scheduler.RunRealtime's rate.Limiter pacing.
func runClient(cfg *config.Config) error {
	logger := common.NewConsoleLogger()

	if cfg.Network.TCPAddress == "" {
		return fmt.Errorf("no server address given: use --server or set default_server_address in ~/.simcore/config.json")
	}
	name := clientName
	if name == "" {
		name = "simcore-client"
	}

	tcpConn, err := net.Dial("tcp", cfg.Network.TCPAddress)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Network.TCPAddress, err)
	}
	defer tcpConn.Close()

	udpConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fmt.Errorf("failed to open udp socket: %w", err)
	}
	defer udpConn.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Network.UDPAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve udp address %s: %w", cfg.Network.UDPAddress, err)
	}

	reliable := lockstep.NewReliableTransport(tcpConn)
	unreliable := lockstep.NewUnreliableTransport(udpConn, udpAddr)

	netMetrics := metrics.NewNetworkMetricsCollector()

	client := lockstep.NewClient(reliable, unreliable, lockstep.ClientConfig{
		Name:              name,
		Version:           "simcore-1",
		FBA:               cfg.Network.FBA,
		Logger:            logger,
		Metrics:           netMetrics,
		UDPSilenceTimeout: cfg.Network.UDPSilenceTimeout,
	})

	fmt.Printf("simcore-client connecting to %s as %q\n", cfg.Network.TCPAddress, name)

	hz := cfg.Simulation.TickHz
	if hz <= 0 {
		hz = simtime.TicksPerRealSecond
	}
	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	ctx := context.Background()

	// dispatchReg and the map stay local-only: the transferred snapshot
	// carries world/market/rng state (persistence.WorldSnapshot), not road
	// geometry, so the client mirrors ticks against an empty map until a
	// later snapshot format adds it.
	dispatchReg := dispatch.NewRegistry()
	m := mapmodel.NewMap(terrain.NewHeightmap())
	var sched *scheduler.Scheduler

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		result, err := client.Poll()
		if err != nil {
			logger.Errorf("poll error: %v", err)
			continue
		}

		switch r := result.(type) {
		case lockstep.ResultWorld:
			snap, err := persistence.DecodeWorldSnapshot(r.World)
			if err != nil {
				return fmt.Errorf("failed to decode world snapshot: %w", err)
			}
			w, mkt, rngProvider, err := persistence.Restore(snap)
			if err != nil {
				return fmt.Errorf("failed to restore world snapshot: %w", err)
			}
			clock := simtime.NewClock(snap.Tick)
			sched = scheduler.New(w, m, mkt, dispatchReg, clock, rngProvider, logger)
			fmt.Printf("world received at tick %d\n", snap.Tick)

		case lockstep.ResultInput:
			if sched == nil {
				continue
			}
			for range r.Frames {
				sched.Tick(ctx)
			}

		case lockstep.ResultDisconnect:
			fmt.Printf("disconnected: %s (%s)\n", r.Reason, r.Detail)
			return nil

		case lockstep.ResultWait:
			// nothing ready this pass
		}
	}
}
