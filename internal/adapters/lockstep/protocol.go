// Package lockstep implements the authoritative-server lockstep protocol
// (spec.md §4.11): a TCP channel for handshake, world transfer and catch-up,
// and a UDP channel for per-tick input exchange once a client is playing.
package lockstep

import (
	"encoding/gob"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/commandlog"
	"github.com/simcore/simcore/internal/domain/simtime"
)

// ReliablePacket is carried on the TCP channel: handshake, world transfer,
// catch-up. Every concrete type must be registered with encoding/gob (see
// init below) since both directions travel inside a ReliableEnvelope's
// interface-typed field.
type ReliablePacket interface{ isReliablePacket() }

// UnreliablePacket is carried on the UDP channel: the initial ReadyForAuth
// probe, the UDP-path confirmation, and steady-state per-tick input.
type UnreliablePacket interface{ isUnreliablePacket() }

// ReliableEnvelope is the single gob-encoded unit sent over the TCP stream.
type ReliableEnvelope struct {
	Payload ReliablePacket
}

// UnreliableEnvelope is the single gob-encoded unit sent in one UDP datagram.
type UnreliableEnvelope struct {
	Payload UnreliablePacket
}

// Connect is the client's handshake opener (spec.md §4.11 step 2).
// SessionID correlates log lines for one connection attempt across
// reconnects, independent of the AuthentID the server assigns afterward.
type Connect struct {
	Name      string
	Version   string
	SessionID string
}

func (Connect) isReliablePacket() {}

// Challenge is the server's reply to Connect (step 3): a nonce the client
// must echo back over UDP to prove it owns that address.
type Challenge struct {
	Nonce uint64
}

func (Challenge) isReliablePacket() {}

// AuthentResponse admits a client and assigns it an authent ID used for
// deterministic per-frame input ordering (spec.md §4.11 "Ordering").
type AuthentResponse struct {
	AuthentID  uint32
	TickPeriod *durationpb.Duration
}

func (AuthentResponse) isReliablePacket() {}

// Refused ends the handshake; Code classifies the reason (§7) and the
// server closes the socket immediately after sending it.
type Refused struct {
	Reason string
	Code   uint32 // google.golang.org/grpc/codes.Code
}

func (Refused) isReliablePacket() {}

// WorldFragment is one chunk of the gob-encoded world snapshot (spec.md
// §4.11 "World transfer"). Seq is zero-based; the last fragment has
// Final == true.
type WorldFragment struct {
	Seq   int
	Final bool
	Data  []byte
}

func (WorldFragment) isReliablePacket() {}

// WorldAck acknowledges receipt of fragment Seq.
type WorldAck struct {
	Seq int
}

func (WorldAck) isReliablePacket() {}

// BeginCatchUp is sent once the client has reassembled the full world,
// asking the server to start replaying buffered input.
type BeginCatchUp struct{}

func (BeginCatchUp) isReliablePacket() {}

// CatchUpBatch is one tick's worth of input accumulated since the world was
// sent (spec.md §4.11 "Catch-up"), replayed to the client one tick at a time.
type CatchUpBatch struct {
	Frame  simtime.Tick
	Inputs []FrameInput
}

func (CatchUpBatch) isReliablePacket() {}

// CatchUpAck acknowledges one CatchUpBatch by frame number.
type CatchUpAck struct {
	Frame simtime.Tick
}

func (CatchUpAck) isReliablePacket() {}

// ReadyToPlay ends catch-up: the client is within a handful of frames of
// live and switches to steady-state UDP input exchange.
type ReadyToPlay struct {
	FinalConsumedFrame simtime.Tick
	FinalInputs        []FrameInput
}

func (ReadyToPlay) isReliablePacket() {}

// ReadyForAuth is the server's unreliable probe to a newly seen address
// (spec.md §4.11 step 1), inviting a Connect over TCP.
type ReadyForAuth struct{}

func (ReadyForAuth) isUnreliablePacket() {}

// Connection confirms the UDP path by echoing the TCP-delivered nonce
// (step 4).
type Connection struct {
	Nonce uint64
}

func (Connection) isUnreliablePacket() {}

// Input carries one client's intent for one frame. Commands is the closed
// world-command set (commandlog.Handlers' registrations) this frame wants
// applied; the server rejects a frame containing a command type it never
// registered.
type Input struct {
	Frame     simtime.Tick
	AuthentID uint32
	Commands  []common.Request
}

func (Input) isUnreliablePacket() {}

// InputBatch is the server's broadcast of every client's Input for one
// frame, sorted by AuthentID (spec.md §5 rule 3 / §4.11 "Ordering"), so every
// client reconstructs an identical global input set for that frame.
type InputBatch struct {
	Frame  simtime.Tick
	Inputs []FrameInput
}

func (InputBatch) isUnreliablePacket() {}

// FrameInput is one client's contribution to one frame, as recorded inside
// a CatchUpBatch, ReadyToPlay, or InputBatch.
type FrameInput struct {
	AuthentID uint32
	Commands  []common.Request
}

func durationFromPeriod(period time.Duration) *durationpb.Duration {
	return durationpb.New(period)
}

func init() {
	gob.Register(Connect{})
	gob.Register(Challenge{})
	gob.Register(AuthentResponse{})
	gob.Register(Refused{})
	gob.Register(WorldFragment{})
	gob.Register(WorldAck{})
	gob.Register(BeginCatchUp{})
	gob.Register(CatchUpBatch{})
	gob.Register(CatchUpAck{})
	gob.Register(ReadyToPlay{})
	gob.Register(ReadyForAuth{})
	gob.Register(Connection{})
	gob.Register(Input{})
	gob.Register(InputBatch{})
	gob.Register(durationpb.Duration{})

	// Input/FrameInput.Commands carries the same closed command set
	// commandlog.Handlers registers with the mediator (spec.md §6: "the
	// serialization surface for network input and replay"), so every
	// concrete command type must be gob-registered here too.
	gob.Register(commandlog.MakeConnection{})
	gob.Register(commandlog.RemoveIntersection{})
	gob.Register(commandlog.RemoveRoad{})
	gob.Register(commandlog.RemoveBuilding{})
	gob.Register(commandlog.BuildHouse{})
	gob.Register(commandlog.BuildSpecialBuilding{})
	gob.Register(commandlog.UpdateIntersectionPolicy{})
	gob.Register(commandlog.UpdateZone{})
	gob.Register(commandlog.Terraform{})
	gob.Register(commandlog.SpawnTrain{})
	gob.Register(commandlog.SpawnRandomCars{})
	gob.Register(commandlog.SendMessage{})
	gob.Register(commandlog.SetGameTime{})
	gob.Register(commandlog.Init{})
}

// disconnectCode narrows a protocol failure down to the grpc/codes taxonomy
// used for Refused.Code and Disconnected classification (SPEC_FULL.md
// §4.15).
func disconnectCode(reason DisconnectReason) codes.Code {
	switch reason {
	case ReasonVersionMismatch:
		return codes.FailedPrecondition
	case ReasonChallengeFailed:
		return codes.Unauthenticated
	case ReasonUDPTimeout:
		return codes.DeadlineExceeded
	case ReasonServerShutdown:
		return codes.Unavailable
	case ReasonTCPClosed:
		return codes.Aborted
	default:
		return codes.Unknown
	}
}
