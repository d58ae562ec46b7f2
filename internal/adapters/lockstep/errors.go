package lockstep

import (
	"fmt"

	"google.golang.org/grpc/codes"

	"github.com/simcore/simcore/internal/domain/shared"
)

// DisconnectReason classifies why a client or server side dropped a
// connection (spec.md §4.11 "Cancellation & disconnect"). Each maps to a
// grpc/codes.Code for Refused.Code and for logging.
type DisconnectReason int

const (
	ReasonUnknown DisconnectReason = iota
	ReasonVersionMismatch
	ReasonChallengeFailed
	ReasonUDPTimeout
	ReasonServerShutdown
	ReasonTCPClosed
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonVersionMismatch:
		return "version_mismatch"
	case ReasonChallengeFailed:
		return "challenge_failed"
	case ReasonUDPTimeout:
		return "udp_timeout"
	case ReasonServerShutdown:
		return "server_shutdown"
	case ReasonTCPClosed:
		return "tcp_closed"
	default:
		return "unknown"
	}
}

// Code returns the grpc/codes.Code this reason is classified under
// (SPEC_FULL.md §4.15).
func (r DisconnectReason) Code() codes.Code { return disconnectCode(r) }

// reasonFromCode narrows a Refused packet's wire-level grpc/codes.Code back
// to this package's DisconnectReason taxonomy, for a client that only
// received the numeric code over the network.
func reasonFromCode(code uint32) DisconnectReason {
	switch codes.Code(code) {
	case codes.FailedPrecondition:
		return ReasonVersionMismatch
	case codes.Unauthenticated:
		return ReasonChallengeFailed
	case codes.DeadlineExceeded:
		return ReasonUDPTimeout
	case codes.Unavailable:
		return ReasonServerShutdown
	case codes.Aborted:
		return ReasonTCPClosed
	default:
		return ReasonUnknown
	}
}

// DisconnectedError describes a client's drop to the Disconnected state
// as an error value a caller can log or surface to a user (Client.Poll
// itself reports a drop as a ResultDisconnect with a nil error). It wraps shared.ProtocolError so it composes with the rest of the
// domain's error hierarchy.
type DisconnectedError struct {
	*shared.ProtocolError
	DisconnectReason DisconnectReason
}

func NewDisconnectedError(reason DisconnectReason, detail string) *DisconnectedError {
	return &DisconnectedError{
		ProtocolError:    shared.NewProtocolError(fmt.Sprintf("%s: %s", reason, detail)),
		DisconnectReason: reason,
	}
}
