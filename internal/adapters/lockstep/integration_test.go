package lockstep

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/commandlog"
	"github.com/simcore/simcore/internal/domain/simtime"
)

type fakeWorldSource struct {
	world []byte
	tick  simtime.Tick
}

func (f fakeWorldSource) Snapshot() ([]byte, simtime.Tick, error) {
	return f.world, f.tick, nil
}

func dialClient(t *testing.T, tcpAddr, udpAddr net.Addr) *Client {
	t.Helper()
	conn, err := net.Dial("tcp", tcpAddr.String())
	require.NoError(t, err)

	clientUDP, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	reliable := NewReliableTransport(conn)
	unreliable := NewUnreliableTransport(clientUDP, udpAddr)

	return NewClient(reliable, unreliable, ClientConfig{
		Name:    "alice",
		Version: "1.0.0",
		FBA:     2,
	})
}

func pollUntilPlaying(t *testing.T, c *Client, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		result, err := c.Poll()
		require.NoError(t, err)
		if rd, ok := result.(ResultDisconnect); ok {
			t.Fatalf("client disconnected unexpectedly: %s (%s)", rd.Reason, rd.Detail)
		}
		if c.State() == ClientPlaying {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client never reached Playing, stuck in %s", c.State())
}

func TestLockstep_HandshakeWorldTransferAndCatchUp(t *testing.T) {
	tcpListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer tcpListener.Close()

	serverUDP, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer serverUDP.Close()

	world := fakeWorldSource{world: []byte("city state bytes"), tick: simtime.Tick(100)}
	server := NewServer(tcpListener, serverUDP, world, ServerConfig{
		Version:          "1.0.0",
		TickPeriod:       50 * time.Millisecond,
		FBA:              2,
		HandshakeTimeout: 2 * time.Second,
	})
	defer server.Close()
	go server.Serve()

	client := dialClient(t, tcpListener.Addr(), serverUDP.LocalAddr())

	var gotWorld []byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err := client.Poll()
		require.NoError(t, err)
		if rd, ok := result.(ResultDisconnect); ok {
			t.Fatalf("client disconnected during handshake: %s (%s)", rd.Reason, rd.Detail)
		}
		if rw, ok := result.(ResultWorld); ok {
			gotWorld = rw.World
		}
		if client.State() == ClientPlaying {
			break
		}
		time.Sleep(time.Millisecond)
	}

	require.Equal(t, ClientPlaying, client.State())
	require.Equal(t, []byte("city state bytes"), gotWorld)
	require.NotZero(t, client.AuthentID())
	require.NotEmpty(t, client.SessionID())
	require.Eventually(t, func() bool { return server.ClientCount() == 1 }, time.Second, time.Millisecond)
}

func TestLockstep_SteadyStateInputRoundTrips(t *testing.T) {
	tcpListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer tcpListener.Close()

	serverUDP, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer serverUDP.Close()

	world := fakeWorldSource{world: []byte("x"), tick: simtime.Tick(1)}
	server := NewServer(tcpListener, serverUDP, world, ServerConfig{
		Version:          "1.0.0",
		HandshakeTimeout: 2 * time.Second,
		FBA:              2,
	})
	defer server.Close()
	go server.Serve()

	client := dialClient(t, tcpListener.Addr(), serverUDP.LocalAddr())
	pollUntilPlaying(t, client, 2*time.Second)

	frame := simtime.Tick(2)
	cmd := []common.Request{commandlog.SetGameTime{Tick: frame}}
	require.NoError(t, client.SendInput(frame, cmd))

	var broadcast []FrameInput
	require.Eventually(t, func() bool {
		inputs := server.Tick(frame)
		if len(inputs) > 0 {
			broadcast = inputs
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	require.Len(t, broadcast, 1)
	require.Equal(t, client.AuthentID(), broadcast[0].AuthentID)

	var gotFrame bool
	require.Eventually(t, func() bool {
		result, err := client.Poll()
		require.NoError(t, err)
		if ri, ok := result.(ResultInput); ok && len(ri.Frames) > 0 {
			gotFrame = true
		}
		return gotFrame
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSortFrameInputs_OrdersByAuthentID(t *testing.T) {
	inputs := []FrameInput{
		{AuthentID: 3},
		{AuthentID: 1},
		{AuthentID: 2},
	}
	sortFrameInputs(inputs)
	require.Equal(t, []FrameInput{{AuthentID: 1}, {AuthentID: 2}, {AuthentID: 3}}, inputs)
}
