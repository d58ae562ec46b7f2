package lockstep

import (
	"bytes"
	"encoding/gob"
	"errors"
	"net"
	"sync"
	"time"
)

// ErrNoData is returned by a transport's TryRecv when nothing is buffered
// yet; it is not a connection failure.
var ErrNoData = errors.New("lockstep: no data available")

// ReliableTransport is the ordered, TCP-backed channel carrying handshake,
// world transfer and catch-up packets.
type ReliableTransport interface {
	Send(pkt ReliablePacket) error
	// TryRecv returns ErrNoData if nothing has arrived yet, without
	// blocking the caller's poll loop.
	TryRecv() (ReliablePacket, error)
	// RecvTimeout blocks until a packet arrives or timeout elapses, for
	// the synchronous per-client handshake (never called from the
	// steady-state poll loop).
	RecvTimeout(timeout time.Duration) (ReliablePacket, error)
	Close() error
}

// UnreliableTransport is the UDP-backed channel carrying the auth probe,
// the UDP-path confirmation, and steady-state input.
type UnreliableTransport interface {
	Send(pkt UnreliablePacket) error
	TryRecv() (UnreliablePacket, error)
	Close() error
}

// gobReliableTransport wraps one net.Conn (a TCP connection) with a
// background decode goroutine feeding a buffered channel, so TryRecv never
// blocks. gob's own stream framing (one Encode call == one decodable unit)
// makes this a correct message boundary without a manual length prefix.
type gobReliableTransport struct {
	conn net.Conn

	encMu sync.Mutex
	enc   *gob.Encoder

	recvCh chan ReliablePacket
	errCh  chan error
	done   chan struct{}
}

// NewReliableTransport starts the background reader for conn. Close stops it.
func NewReliableTransport(conn net.Conn) ReliableTransport {
	t := &gobReliableTransport{
		conn:   conn,
		enc:    gob.NewEncoder(conn),
		recvCh: make(chan ReliablePacket, 64),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *gobReliableTransport) readLoop() {
	dec := gob.NewDecoder(t.conn)
	for {
		var env ReliableEnvelope
		if err := dec.Decode(&env); err != nil {
			select {
			case t.errCh <- err:
			default:
			}
			close(t.recvCh)
			return
		}
		select {
		case t.recvCh <- env.Payload:
		case <-t.done:
			return
		}
	}
}

func (t *gobReliableTransport) Send(pkt ReliablePacket) error {
	t.encMu.Lock()
	defer t.encMu.Unlock()
	return t.enc.Encode(&ReliableEnvelope{Payload: pkt})
}

func (t *gobReliableTransport) TryRecv() (ReliablePacket, error) {
	select {
	case pkt, ok := <-t.recvCh:
		if !ok {
			select {
			case err := <-t.errCh:
				return nil, err
			default:
				return nil, ErrNoData
			}
		}
		return pkt, nil
	default:
		return nil, ErrNoData
	}
}

func (t *gobReliableTransport) RecvTimeout(timeout time.Duration) (ReliablePacket, error) {
	select {
	case pkt, ok := <-t.recvCh:
		if !ok {
			select {
			case err := <-t.errCh:
				return nil, err
			default:
				return nil, ErrNoData
			}
		}
		return pkt, nil
	case <-time.After(timeout):
		return nil, ErrNoData
	}
}

func (t *gobReliableTransport) Close() error {
	close(t.done)
	return t.conn.Close()
}

// gobUnreliableTransport wraps one net.PacketConn (a UDP socket) dialed to
// exactly one peer (the client's view: one socket, one server). It owns the
// socket's only reader goroutine, so this type must not be used on a socket
// another transport also reads from — see udpMultiplexer for the
// one-socket-many-clients server case.
type gobUnreliableTransport struct {
	conn     net.PacketConn
	peerAddr net.Addr

	recvCh chan UnreliablePacket
	done   chan struct{}
}

// NewUnreliableTransport starts a background reader over conn, filtering to
// datagrams from peerAddr, and owns conn (Close closes it). Used by a
// client, which dials one socket to exactly one server.
func NewUnreliableTransport(conn net.PacketConn, peerAddr net.Addr) UnreliableTransport {
	t := &gobUnreliableTransport{
		conn:     conn,
		peerAddr: peerAddr,
		recvCh:   make(chan UnreliablePacket, 256),
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *gobUnreliableTransport) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if addr.String() != t.peerAddr.String() {
			continue
		}
		pkt, err := decodeUnreliable(buf[:n])
		if err != nil {
			continue
		}
		select {
		case t.recvCh <- pkt:
		case <-t.done:
			return
		default:
			// Backlog full: drop, consistent with "unreliable" semantics.
		}
	}
}

func (t *gobUnreliableTransport) Send(pkt UnreliablePacket) error {
	buf, err := encodeUnreliable(pkt)
	if err != nil {
		return err
	}
	_, err = t.conn.WriteTo(buf, t.peerAddr)
	return err
}

func (t *gobUnreliableTransport) TryRecv() (UnreliablePacket, error) {
	select {
	case pkt, ok := <-t.recvCh:
		if !ok {
			return nil, ErrNoData
		}
		return pkt, nil
	default:
		return nil, ErrNoData
	}
}

func (t *gobUnreliableTransport) Close() error {
	close(t.done)
	return t.conn.Close()
}

func encodeUnreliable(pkt UnreliablePacket) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&UnreliableEnvelope{Payload: pkt}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeUnreliable(data []byte) (UnreliablePacket, error) {
	var env UnreliableEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, err
	}
	return env.Payload, nil
}

// udpMultiplexer owns the single reader goroutine on a server's UDP socket
// and demultiplexes incoming datagrams to per-address channels, so many
// clients can share one socket without racing each other's ReadFrom calls
// (the bug a per-client reader goroutine on a shared socket would have).
type udpMultiplexer struct {
	conn net.PacketConn

	mu      sync.Mutex
	clients map[string]chan UnreliablePacket

	onNewAddr func(addr net.Addr, pkt UnreliablePacket)
}

// newUDPMultiplexer starts the shared reader. onNewAddr fires for a
// datagram from an address with no registered transport yet (the server's
// handshake entry point: a client's first Connection or implicit probe).
func newUDPMultiplexer(conn net.PacketConn, onNewAddr func(addr net.Addr, pkt UnreliablePacket)) *udpMultiplexer {
	m := &udpMultiplexer{
		conn:      conn,
		clients:   make(map[string]chan UnreliablePacket),
		onNewAddr: onNewAddr,
	}
	go m.readLoop()
	return m
}

func (m *udpMultiplexer) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := m.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		pkt, err := decodeUnreliable(buf[:n])
		if err != nil {
			continue
		}
		m.mu.Lock()
		ch, known := m.clients[addr.String()]
		m.mu.Unlock()
		if !known {
			if m.onNewAddr != nil {
				m.onNewAddr(addr, pkt)
			}
			continue
		}
		select {
		case ch <- pkt:
		default:
		}
	}
}

// transportFor registers addr and returns a transport for it. Datagrams
// from addr seen before this call (other than the one passed to onNewAddr)
// are not replayed.
func (m *udpMultiplexer) transportFor(addr net.Addr) UnreliableTransport {
	ch := make(chan UnreliablePacket, 256)
	m.mu.Lock()
	m.clients[addr.String()] = ch
	m.mu.Unlock()
	return &muxTransport{mux: m, addr: addr, recvCh: ch}
}

func (m *udpMultiplexer) forget(addr net.Addr) {
	m.mu.Lock()
	delete(m.clients, addr.String())
	m.mu.Unlock()
}

// muxTransport is one client's view of a udpMultiplexer-owned socket: sends
// go straight to the shared socket, receives come from the per-client
// channel the multiplexer feeds.
type muxTransport struct {
	mux    *udpMultiplexer
	addr   net.Addr
	recvCh chan UnreliablePacket
}

func (t *muxTransport) Send(pkt UnreliablePacket) error {
	buf, err := encodeUnreliable(pkt)
	if err != nil {
		return err
	}
	_, err = t.mux.conn.WriteTo(buf, t.addr)
	return err
}

func (t *muxTransport) TryRecv() (UnreliablePacket, error) {
	select {
	case pkt := <-t.recvCh:
		return pkt, nil
	default:
		return nil, ErrNoData
	}
}

func (t *muxTransport) Close() error {
	t.mux.forget(t.addr)
	return nil
}
