package lockstep

import (
	"encoding/gob"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simcore/simcore/internal/adapters/metrics"
	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/simtime"
)

// ClientState mirrors the original client's state machine (spec.md §4.11):
// Connecting -> Downloading -> CatchingUp -> Playing, with a Disconnected
// sink reachable from any state.
type ClientState int

const (
	ClientConnecting ClientState = iota
	ClientDownloading
	ClientCatchingUp
	ClientPlaying
	ClientDisconnected
)

func (s ClientState) String() string {
	switch s {
	case ClientConnecting:
		return "Connecting"
	case ClientDownloading:
		return "Downloading"
	case ClientCatchingUp:
		return "CatchingUp"
	case ClientPlaying:
		return "Playing"
	case ClientDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// PollResult is what Client.Poll returns each call: either nothing
// happened (ResultWait), one or more frames of input are ready to apply in
// order (ResultInput), the world snapshot just arrived (ResultWorld), or
// the client dropped (ResultDisconnect). Grounded on the original's
// PollResult<W, I> enum.
type PollResult interface{ isPollResult() }

type ResultWait struct{}

func (ResultWait) isPollResult() {}

// ResultWorld carries the freshly assembled world snapshot. Poll does not
// fill in Tick; it stays zero.
type ResultWorld struct {
	Tick  simtime.Tick
	World []byte
}

func (ResultWorld) isPollResult() {}

// FrameBatch is one tick's worth of every client's input, in the
// deterministic authent-ID order (spec.md §5 rule 3).
type FrameBatch struct {
	Frame  simtime.Tick
	Inputs []FrameInput
}

// ResultInput carries one or more consecutive frames ready to apply, in
// order.
type ResultInput struct {
	Frames []FrameBatch
}

func (ResultInput) isPollResult() {}

type ResultDisconnect struct {
	Reason DisconnectReason
	Detail string
}

func (ResultDisconnect) isPollResult() {}

// ClientConfig configures a new Client.
type ClientConfig struct {
	Name    string
	Version string
	FBA     uint64 // frame-buffer-advance; 0 defaults to 1 inside ClientPlayoutBuffer
	Logger  common.SimLogger
	Metrics *metrics.NetworkMetricsCollector
	// UDPSilenceTimeout disconnects a Playing client that has received no
	// unreliable traffic for this long (spec.md §4.11 "Cancellation &
	// disconnect"). Zero disables the check.
	UDPSilenceTimeout time.Duration
}

// Client drives one participant's side of the lockstep protocol. It does
// no socket I/O of its own — Poll is driven by the caller's tick loop, and
// all network access goes through the Reliable/Unreliable transports
// passed to NewClient.
type Client struct {
	cfg        ClientConfig
	reliable   ReliableTransport
	unreliable UnreliableTransport

	sessionID string

	mu          sync.Mutex
	state       ClientState
	authentID   uint32
	tickPeriod  time.Duration
	nonce       uint64
	worldParts  map[int][]byte
	worldFinal  int
	buffer      *ClientPlayoutBuffer
	sentHello   bool
	lastRecvAt  time.Time
	disconnectR DisconnectReason
	disconnectD string
}

// NewClient wires a Client over the given transports. reliable and
// unreliable must already be connected to the same server.
func NewClient(reliable ReliableTransport, unreliable UnreliableTransport, cfg ClientConfig) *Client {
	return &Client{
		cfg:        cfg,
		reliable:   reliable,
		unreliable: unreliable,
		state:      ClientConnecting,
		worldParts: make(map[int][]byte),
		lastRecvAt: time.Now(),
		sessionID:  uuid.New().String(),
	}
}

// SessionID is a per-connection-attempt identifier, stable across the
// handshake but distinct from the server-assigned AuthentID; useful for
// correlating client and server log lines for one connection attempt.
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) AuthentID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authentID
}

func (c *Client) log(format string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Infof(format, args...)
	}
}

func (c *Client) disconnect(reason DisconnectReason, detail string) ResultDisconnect {
	c.state = ClientDisconnected
	c.disconnectR = reason
	c.disconnectD = detail
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordDisconnect(reason.String())
	}
	c.log("lockstep client disconnected: %s (%s)", reason, detail)
	return ResultDisconnect{Reason: reason, Detail: detail}
}

// Poll advances the client's state machine by exactly one non-blocking
// pass over both transports and returns what happened. The caller's tick
// loop should call Poll every tick.
func (c *Client) Poll() (PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case ClientConnecting:
		return c.pollConnecting()
	case ClientDownloading:
		return c.pollDownloading()
	case ClientCatchingUp:
		return c.pollCatchingUp()
	case ClientPlaying:
		return c.pollPlaying()
	case ClientDisconnected:
		return ResultDisconnect{Reason: c.disconnectR, Detail: c.disconnectD}, nil
	default:
		return ResultWait{}, nil
	}
}

func (c *Client) pollConnecting() (PollResult, error) {
	if !c.sentHello {
		if err := c.unreliable.Send(Hello{}); err != nil {
			return ResultWait{}, err
		}
		c.sentHello = true
	}

	for {
		pkt, err := c.unreliable.TryRecv()
		if errors.Is(err, ErrNoData) {
			break
		}
		if err != nil {
			return c.disconnect(ReasonUDPTimeout, err.Error()), nil
		}
		if _, ok := pkt.(ReadyForAuth); ok {
			connectPkt := Connect{Name: c.cfg.Name, Version: c.cfg.Version, SessionID: c.sessionID}
			if err := c.reliable.Send(connectPkt); err != nil {
				return ResultWait{}, err
			}
		}
	}

	pkt, err := c.reliable.TryRecv()
	if errors.Is(err, ErrNoData) {
		return ResultWait{}, nil
	}
	if err != nil {
		return c.disconnect(ReasonTCPClosed, err.Error()), nil
	}

	switch p := pkt.(type) {
	case Challenge:
		c.nonce = p.Nonce
		if err := c.unreliable.Send(Connection{Nonce: p.Nonce}); err != nil {
			return ResultWait{}, err
		}
		return ResultWait{}, nil
	case AuthentResponse:
		c.authentID = p.AuthentID
		if p.TickPeriod != nil {
			c.tickPeriod = p.TickPeriod.AsDuration()
		}
		c.state = ClientDownloading
		c.log("lockstep client authenticated as %d", c.authentID)
		return ResultWait{}, nil
	case Refused:
		return c.disconnect(reasonFromCode(p.Code), p.Reason), nil
	default:
		return ResultWait{}, nil
	}
}

func (c *Client) pollDownloading() (PollResult, error) {
	pkt, err := c.reliable.TryRecv()
	if errors.Is(err, ErrNoData) {
		return ResultWait{}, nil
	}
	if err != nil {
		return c.disconnect(ReasonTCPClosed, err.Error()), nil
	}

	frag, ok := pkt.(WorldFragment)
	if !ok {
		return ResultWait{}, nil
	}
	c.worldParts[frag.Seq] = frag.Data
	if err := c.reliable.Send(WorldAck{Seq: frag.Seq}); err != nil {
		return ResultWait{}, err
	}
	if !frag.Final {
		return ResultWait{}, nil
	}
	c.worldFinal = frag.Seq

	world := make([]byte, 0)
	for seq := 0; seq <= c.worldFinal; seq++ {
		part, ok := c.worldParts[seq]
		if !ok {
			return c.disconnect(ReasonUnknown, "world transfer missing fragment"), nil
		}
		world = append(world, part...)
	}

	if err := c.reliable.Send(BeginCatchUp{}); err != nil {
		return ResultWait{}, err
	}
	c.state = ClientCatchingUp
	c.log("lockstep client received world (%d bytes, %d fragments)", len(world), c.worldFinal+1)
	return ResultWorld{World: world}, nil
}

func (c *Client) pollCatchingUp() (PollResult, error) {
	pkt, err := c.reliable.TryRecv()
	if errors.Is(err, ErrNoData) {
		return ResultWait{}, nil
	}
	if err != nil {
		return c.disconnect(ReasonTCPClosed, err.Error()), nil
	}

	switch p := pkt.(type) {
	case CatchUpBatch:
		if err := c.reliable.Send(CatchUpAck{Frame: p.Frame}); err != nil {
			return ResultWait{}, err
		}
		return ResultInput{Frames: []FrameBatch{{Frame: p.Frame, Inputs: p.Inputs}}}, nil
	case ReadyToPlay:
		c.buffer = NewClientPlayoutBuffer(c.cfg.FBA, p.FinalConsumedFrame)
		c.lastRecvAt = time.Now()
		c.state = ClientPlaying
		c.log("lockstep client ready to play at frame %d", p.FinalConsumedFrame)
		if len(p.FinalInputs) == 0 {
			return ResultWait{}, nil
		}
		return ResultInput{Frames: []FrameBatch{{Frame: p.FinalConsumedFrame, Inputs: p.FinalInputs}}}, nil
	default:
		return ResultWait{}, nil
	}
}

func (c *Client) pollPlaying() (PollResult, error) {
	for {
		pkt, err := c.unreliable.TryRecv()
		if errors.Is(err, ErrNoData) {
			break
		}
		if err != nil {
			return c.disconnect(ReasonUDPTimeout, err.Error()), nil
		}
		c.lastRecvAt = time.Now()
		if batch, ok := pkt.(InputBatch); ok {
			c.buffer.Insert(batch.Frame, batch.Inputs)
		}
	}

	if c.cfg.UDPSilenceTimeout > 0 && time.Since(c.lastRecvAt) > c.cfg.UDPSilenceTimeout {
		return c.disconnect(ReasonUDPTimeout, "no unreliable traffic within timeout"), nil
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.SetInputBufferDepth(int(c.buffer.Backlog()))
	}

	n := c.buffer.AdvanceCount()
	if n == 0 {
		return ResultWait{}, nil
	}
	frames := make([]FrameBatch, 0, n)
	for i := uint64(0); i < n; i++ {
		frame, inputs, ok := c.buffer.TryConsume()
		if !ok {
			break
		}
		frames = append(frames, FrameBatch{Frame: frame, Inputs: inputs})
	}
	if len(frames) == 0 {
		return ResultWait{}, nil
	}
	return ResultInput{Frames: frames}, nil
}

// SendInput publishes this client's intent for frame over the unreliable
// channel. Only valid once Playing.
func (c *Client) SendInput(frame simtime.Tick, commands []common.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClientPlaying {
		return errors.New("lockstep: SendInput called outside Playing state")
	}
	return c.unreliable.Send(Input{Frame: frame, AuthentID: c.authentID, Commands: commands})
}

// sortFrameInputs orders a frame's inputs by AuthentID, the deterministic
// ordering spec.md §5 rule 3 and §4.11 "Ordering" both require.
func sortFrameInputs(inputs []FrameInput) {
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].AuthentID < inputs[j].AuthentID })
}

// Hello is the client's first UDP datagram, sent before the server knows
// its address; it exists purely to trigger the server's "new address ->
// ReadyForAuth" rule (spec.md §4.11 step 1). Not present in the original
// protocol text directly — see DESIGN.md's Open Question on rendezvous.
type Hello struct{}

func (Hello) isUnreliablePacket() {}

func init() {
	gob.Register(Hello{})
}
