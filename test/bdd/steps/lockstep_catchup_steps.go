package steps

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cucumber/godog"

	"github.com/simcore/simcore/internal/adapters/lockstep"
	"github.com/simcore/simcore/internal/domain/simtime"
)

type fakeWorldSource struct {
	world []byte
	tick  simtime.Tick
}

func (f fakeWorldSource) Snapshot() ([]byte, simtime.Tick, error) {
	return f.world, f.tick, nil
}

// lockstepCatchupContext drives spec.md §8 scenario 6 ("Lockstep client
// catch-up"), grounded on integration_test.go's
// TestLockstep_HandshakeWorldTransferAndCatchUp.
type lockstepCatchupContext struct {
	tcpListener net.Listener
	udpConn     net.PacketConn
	server      *lockstep.Server
	client      *lockstep.Client

	gotWorld []byte
}

func (c *lockstepCatchupContext) reset() {
	if c.server != nil {
		c.server.Close()
	}
	*c = lockstepCatchupContext{}
}

func (c *lockstepCatchupContext) aLockstepServerIsServingAWorldSnapshotAtTick(tick int) error {
	tcpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	udpConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	world := fakeWorldSource{world: []byte("city state bytes"), tick: simtime.Tick(tick)}
	server := lockstep.NewServer(tcpListener, udpConn, world, lockstep.ServerConfig{
		Version:          "simcore-bdd-1",
		TickPeriod:       50 * time.Millisecond,
		FBA:              2,
		HandshakeTimeout: 2 * time.Second,
	})
	go server.Serve()

	c.tcpListener = tcpListener
	c.udpConn = udpConn
	c.server = server
	return nil
}

func (c *lockstepCatchupContext) aClientConnectsToTheServer() error {
	conn, err := net.Dial("tcp", c.tcpListener.Addr().String())
	if err != nil {
		return err
	}
	clientUDP, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	reliable := lockstep.NewReliableTransport(conn)
	unreliable := lockstep.NewUnreliableTransport(clientUDP, c.udpConn.LocalAddr())

	c.client = lockstep.NewClient(reliable, unreliable, lockstep.ClientConfig{
		Name:    "bdd-client",
		Version: "simcore-bdd-1",
		FBA:     2,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err := c.client.Poll()
		if err != nil {
			return err
		}
		if rd, ok := result.(lockstep.ResultDisconnect); ok {
			return fmt.Errorf("client disconnected during handshake: %s (%s)", rd.Reason, rd.Detail)
		}
		if rw, ok := result.(lockstep.ResultWorld); ok {
			c.gotWorld = rw.World
		}
		if c.client.State() == lockstep.ClientPlaying {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("client never reached Playing, stuck in %s", c.client.State())
}

func (c *lockstepCatchupContext) theClientReachesThePlayingState() error {
	if c.client.State() != lockstep.ClientPlaying {
		return fmt.Errorf("expected client state Playing, got %s", c.client.State())
	}
	return nil
}

func (c *lockstepCatchupContext) theClientReceivedTheServersWorldSnapshot() error {
	if string(c.gotWorld) != "city state bytes" {
		return fmt.Errorf("expected world snapshot %q, got %q", "city state bytes", c.gotWorld)
	}
	return nil
}

func InitializeLockstepCatchUpScenario(ctx *godog.ScenarioContext) {
	c := &lockstepCatchupContext{}
	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return goctx, nil
	})

	ctx.Step(`^a lockstep server is serving a world snapshot at tick (\d+)$`, c.aLockstepServerIsServingAWorldSnapshotAtTick)
	ctx.Step(`^a client connects to the server$`, c.aClientConnectsToTheServer)
	ctx.Step(`^the client reaches the Playing state$`, c.theClientReachesThePlayingState)
	ctx.Step(`^the client received the server's world snapshot$`, c.theClientReceivedTheServersWorldSnapshot)
}
