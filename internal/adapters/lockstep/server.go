package lockstep

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/simcore/simcore/internal/adapters/metrics"
	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/simtime"
)

// WorldSource is the authoritative world a Server transfers to newly
// connecting clients. SPEC_FULL.md's persistence layer (C15) is the
// intended implementer; Server only needs bytes and the tick they were
// taken at, so this interface keeps the two packages decoupled.
type WorldSource interface {
	Snapshot() (world []byte, tick simtime.Tick, err error)
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Version           string
	TickPeriod        time.Duration
	FBA               uint64
	WorldFragmentSize int
	HandshakeTimeout  time.Duration
	HistoryRetention  int // max recorded FrameBatches kept for catch-up replay
	Logger            common.SimLogger
	Metrics           *metrics.NetworkMetricsCollector
}

func (c *ServerConfig) setDefaults() {
	if c.WorldFragmentSize <= 0 {
		c.WorldFragmentSize = 32 * 1024
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.HistoryRetention <= 0 {
		c.HistoryRetention = 20000
	}
}

type pendingAuth struct {
	boundCh chan UnreliableTransport
}

// serverClient is the server's record of one connected participant,
// grounded on DaemonServer's containers map (one entry per live session).
type serverClient struct {
	id         uint32
	name       string
	sessionID  string
	reliable   ReliableTransport
	unreliable UnreliableTransport
	playing    bool
}

// Server is the authoritative side of the lockstep protocol: it accepts
// TCP connections for handshake/world-transfer/catch-up, multiplexes one
// UDP socket across every playing client, and owns the append-only frame
// history catch-up replays from. Its shutdown plumbing (signal channel +
// done channel) is grounded on the teacher's DaemonServer; Close does not
// wait on a timeout.
type Server struct {
	cfg      ServerConfig
	listener net.Listener
	udpConn  net.PacketConn
	mux      *udpMultiplexer
	world    WorldSource

	pendingMu sync.Mutex
	pending   map[uint64]*pendingAuth

	clientsMu sync.RWMutex
	clients   map[uint32]*serverClient

	idMu   sync.Mutex
	nextID uint32

	historyMu sync.Mutex
	history   []FrameBatch

	shutdownChan chan os.Signal
	done         chan struct{}
}

// NewServer creates a Server serving listener (handshake/reliable) and
// udpConn (unreliable); both usually share one port but are accepted
// independently so tests can bind ephemeral ports.
func NewServer(listener net.Listener, udpConn net.PacketConn, world WorldSource, cfg ServerConfig) *Server {
	cfg.setDefaults()
	s := &Server{
		cfg:          cfg,
		listener:     listener,
		udpConn:      udpConn,
		world:        world,
		pending:      make(map[uint64]*pendingAuth),
		clients:      make(map[uint32]*serverClient),
		shutdownChan: make(chan os.Signal, 1),
		done:         make(chan struct{}),
	}
	s.mux = newUDPMultiplexer(udpConn, s.onUDPNewAddr)
	signal.Notify(s.shutdownChan, os.Interrupt, syscall.SIGTERM)
	return s
}

func (s *Server) log(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Infof(format, args...)
	}
}

// Serve accepts TCP connections until the listener closes or a shutdown
// signal arrives, handling each client's handshake on its own goroutine.
func (s *Server) Serve() error {
	go s.handleShutdown()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleShutdown() {
	select {
	case <-s.shutdownChan:
		s.log("lockstep server: shutdown signal received")
	case <-s.done:
		return
	}
	s.Close()
}

// Close stops accepting connections and releases the UDP socket. Clients
// already connected keep their in-memory reservations; spec.md §4.11 says
// those remain server-authoritative until a fresh snapshot is taken.
func (s *Server) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	s.listener.Close()
	return s.udpConn.Close()
}

func (s *Server) onUDPNewAddr(addr net.Addr, pkt UnreliablePacket) {
	switch p := pkt.(type) {
	case Hello:
		buf, err := encodeUnreliable(ReadyForAuth{})
		if err != nil {
			return
		}
		s.udpConn.WriteTo(buf, addr)
	case Connection:
		s.pendingMu.Lock()
		pa, ok := s.pending[p.Nonce]
		if ok {
			delete(s.pending, p.Nonce)
		}
		s.pendingMu.Unlock()
		if !ok {
			return
		}
		transport := s.mux.transportFor(addr)
		select {
		case pa.boundCh <- transport:
		default:
		}
	}
}

func (s *Server) nextAuthentID() uint32 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	s.nextID++
	return s.nextID
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (s *Server) handleConn(conn net.Conn) {
	reliable := NewReliableTransport(conn)

	pkt, err := reliable.RecvTimeout(s.cfg.HandshakeTimeout)
	if err != nil {
		reliable.Close()
		return
	}
	connectPkt, ok := pkt.(Connect)
	if !ok {
		reliable.Close()
		return
	}
	if connectPkt.Version != s.cfg.Version {
		reliable.Send(Refused{Reason: "version mismatch", Code: uint32(codes.FailedPrecondition)})
		reliable.Close()
		return
	}

	nonce, err := randomNonce()
	if err != nil {
		reliable.Close()
		return
	}
	boundCh := make(chan UnreliableTransport, 1)
	s.pendingMu.Lock()
	s.pending[nonce] = &pendingAuth{boundCh: boundCh}
	s.pendingMu.Unlock()

	if err := reliable.Send(Challenge{Nonce: nonce}); err != nil {
		reliable.Close()
		return
	}

	var unreliable UnreliableTransport
	select {
	case unreliable = <-boundCh:
	case <-time.After(s.cfg.HandshakeTimeout):
		s.pendingMu.Lock()
		delete(s.pending, nonce)
		s.pendingMu.Unlock()
		reliable.Send(Refused{Reason: "challenge not confirmed over UDP", Code: uint32(codes.Unauthenticated)})
		reliable.Close()
		return
	}

	authentID := s.nextAuthentID()
	if err := reliable.Send(AuthentResponse{AuthentID: authentID, TickPeriod: durationFromPeriod(s.cfg.TickPeriod)}); err != nil {
		reliable.Close()
		return
	}

	client := &serverClient{id: authentID, name: connectPkt.Name, sessionID: connectPkt.SessionID, reliable: reliable, unreliable: unreliable}
	s.log("lockstep server: client %d (%s, session %s) authenticated", authentID, connectPkt.Name, connectPkt.SessionID)
	s.runWorldTransfer(client)
}

func (s *Server) runWorldTransfer(client *serverClient) {
	world, snapshotTick, err := s.world.Snapshot()
	if err != nil {
		client.reliable.Send(Refused{Reason: "world snapshot unavailable", Code: uint32(codes.Internal)})
		client.reliable.Close()
		return
	}

	size := s.cfg.WorldFragmentSize
	total := (len(world) + size - 1) / size
	if total == 0 {
		total = 1
	}
	for seq := 0; seq < total; seq++ {
		start := seq * size
		end := start + size
		if end > len(world) {
			end = len(world)
		}
		frag := WorldFragment{Seq: seq, Final: seq == total-1, Data: world[start:end]}
		if err := client.reliable.Send(frag); err != nil {
			client.reliable.Close()
			return
		}
		if _, err := client.reliable.RecvTimeout(s.cfg.HandshakeTimeout); err != nil {
			client.reliable.Close()
			return
		}
	}
	s.log("lockstep server: sent world to client %d (%d bytes, %d fragments)", client.id, len(world), total)

	if _, err := client.reliable.RecvTimeout(s.cfg.HandshakeTimeout); err != nil {
		client.reliable.Close()
		return
	}

	catchUpFrames := s.runCatchUp(client, snapshotTick)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordCatchUp(catchUpFrames)
	}

	client.playing = true
	s.registerClient(client)
	go s.watchDisconnect(client)
}

// runCatchUp replays every history frame recorded after the world was
// snapshotted, one tick at a time, per spec.md §4.11 "Catch-up".
func (s *Server) runCatchUp(client *serverClient, since simtime.Tick) int {
	s.historyMu.Lock()
	backlog := make([]FrameBatch, 0, len(s.history))
	for _, b := range s.history {
		if b.Frame > since {
			backlog = append(backlog, b)
		}
	}
	s.historyMu.Unlock()

	finalFrame := since
	for _, batch := range backlog {
		if err := client.reliable.Send(CatchUpBatch{Frame: batch.Frame, Inputs: batch.Inputs}); err != nil {
			return len(backlog)
		}
		if _, err := client.reliable.RecvTimeout(s.cfg.HandshakeTimeout); err != nil {
			return len(backlog)
		}
		finalFrame = batch.Frame
	}

	client.reliable.Send(ReadyToPlay{FinalConsumedFrame: finalFrame})
	return len(backlog)
}

func (s *Server) registerClient(client *serverClient) {
	s.clientsMu.Lock()
	s.clients[client.id] = client
	s.clientsMu.Unlock()
	if s.cfg.Metrics != nil {
		s.clientsMu.RLock()
		n := len(s.clients)
		s.clientsMu.RUnlock()
		s.cfg.Metrics.SetClientsConnected(n)
	}
}

func (s *Server) dropClient(id uint32, reason DisconnectReason) {
	s.clientsMu.Lock()
	client, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	n := len(s.clients)
	s.clientsMu.Unlock()
	if !ok {
		return
	}
	client.reliable.Close()
	client.unreliable.Close()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordDisconnect(reason.String())
		s.cfg.Metrics.SetClientsConnected(n)
	}
	s.log("lockstep server: client %d disconnected (%s)", id, reason)
}

// watchDisconnect notices a playing client's TCP connection closing, which
// per spec.md §4.11 is one of the two disconnect triggers (the other being
// UDP silence, which Tick's send errors surface).
func (s *Server) watchDisconnect(client *serverClient) {
	for {
		_, err := client.reliable.TryRecv()
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNoData) {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		s.dropClient(client.id, ReasonTCPClosed)
		return
	}
}

// Tick collects every playing client's input for frame, orders it
// deterministically, records it for future catch-up replay, and
// broadcasts it back to every playing client. Call once per server tick.
func (s *Server) Tick(frame simtime.Tick) []FrameInput {
	s.clientsMu.RLock()
	clients := make([]*serverClient, 0, len(s.clients))
	for _, c := range s.clients {
		if c.playing {
			clients = append(clients, c)
		}
	}
	s.clientsMu.RUnlock()

	var inputs []FrameInput
	for _, c := range clients {
		for {
			pkt, err := c.unreliable.TryRecv()
			if err != nil {
				break
			}
			in, ok := pkt.(Input)
			if !ok || in.Frame != frame {
				continue
			}
			inputs = append(inputs, FrameInput{AuthentID: in.AuthentID, Commands: in.Commands})
		}
	}
	sortFrameInputs(inputs)

	s.recordHistory(FrameBatch{Frame: frame, Inputs: inputs})

	for _, c := range clients {
		if err := c.unreliable.Send(InputBatch{Frame: frame, Inputs: inputs}); err != nil {
			go s.dropClient(c.id, ReasonUDPTimeout)
		}
	}
	return inputs
}

func (s *Server) recordHistory(batch FrameBatch) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, batch)
	if len(s.history) > s.cfg.HistoryRetention {
		s.history = s.history[len(s.history)-s.cfg.HistoryRetention:]
	}
}

// ClientCount reports how many clients are currently playing.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	n := 0
	for _, c := range s.clients {
		if c.playing {
			n++
		}
	}
	return n
}
