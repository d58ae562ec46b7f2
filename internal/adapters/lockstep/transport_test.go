package lockstep

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGobReliableTransport_SendRecvRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	st := NewReliableTransport(server)
	ct := NewReliableTransport(client)
	defer st.Close()
	defer ct.Close()

	require.NoError(t, st.Send(Challenge{Nonce: 42}))

	pkt, err := ct.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, Challenge{Nonce: 42}, pkt)
}

func TestGobReliableTransport_RecvTimeoutExpiresWithoutData(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ct := NewReliableTransport(client)
	defer ct.Close()
	_ = NewReliableTransport(server)

	_, err := ct.RecvTimeout(20 * time.Millisecond)
	require.ErrorIs(t, err, ErrNoData)
}

func TestGobReliableTransport_TryRecvNonBlocking(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ct := NewReliableTransport(client)
	defer ct.Close()
	_ = NewReliableTransport(server)

	_, err := ct.TryRecv()
	require.ErrorIs(t, err, ErrNoData)
}

func newUDPLoopback(t *testing.T) (a, b net.PacketConn) {
	t.Helper()
	var err error
	a, err = net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	b, err = net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	return a, b
}

func TestGobUnreliableTransport_SendRecvRoundTrip(t *testing.T) {
	connA, connB := newUDPLoopback(t)
	defer connA.Close()
	defer connB.Close()

	tA := NewUnreliableTransport(connA, connB.LocalAddr())
	tB := NewUnreliableTransport(connB, connA.LocalAddr())
	defer tA.Close()
	defer tB.Close()

	require.NoError(t, tA.Send(Connection{Nonce: 7}))

	var pkt UnreliablePacket
	require.Eventually(t, func() bool {
		var err error
		pkt, err = tB.TryRecv()
		return err == nil
	}, time.Second, time.Millisecond)
	require.Equal(t, Connection{Nonce: 7}, pkt)
}

func TestUDPMultiplexer_DemultiplexesByAddress(t *testing.T) {
	serverConn, client1Conn := newUDPLoopback(t)
	_, client2Conn := newUDPLoopback(t)
	defer serverConn.Close()
	defer client1Conn.Close()
	defer client2Conn.Close()

	newAddrs := make(chan net.Addr, 4)
	mux := newUDPMultiplexer(serverConn, func(addr net.Addr, pkt UnreliablePacket) {
		newAddrs <- addr
	})

	buf1, err := encodeUnreliable(Hello{})
	require.NoError(t, err)
	_, err = client1Conn.WriteTo(buf1, serverConn.LocalAddr())
	require.NoError(t, err)

	var firstAddr net.Addr
	select {
	case firstAddr = <-newAddrs:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for onNewAddr")
	}
	require.Equal(t, client1Conn.LocalAddr().String(), firstAddr.String())

	t1 := mux.transportFor(firstAddr)
	defer t1.Close()

	buf2, err := encodeUnreliable(Connection{Nonce: 99})
	require.NoError(t, err)
	_, err = client1Conn.WriteTo(buf2, serverConn.LocalAddr())
	require.NoError(t, err)

	var pkt UnreliablePacket
	require.Eventually(t, func() bool {
		var err error
		pkt, err = t1.TryRecv()
		return err == nil
	}, time.Second, time.Millisecond)
	require.Equal(t, Connection{Nonce: 99}, pkt)

	buf3, err := encodeUnreliable(Hello{})
	require.NoError(t, err)
	_, err = client2Conn.WriteTo(buf3, serverConn.LocalAddr())
	require.NoError(t, err)

	select {
	case addr := <-newAddrs:
		require.Equal(t, client2Conn.LocalAddr().String(), addr.String())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second onNewAddr")
	}
}
