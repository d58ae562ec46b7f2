package lockstep

import (
	"sync"

	"github.com/simcore/simcore/internal/domain/simtime"
)

// ClientPlayoutBuffer holds frames the server has broadcast but the client
// has not yet consumed locally, and implements the fba-scaled catch-up
// advance policy (spec.md §4.11 "Steady state"). fba ("frame-buffer-advance")
// is a tuning parameter, typically 3-8 ticks.
type ClientPlayoutBuffer struct {
	fba uint64

	mu       sync.Mutex
	consumed simtime.Tick
	maxFrame simtime.Tick
	hasMax   bool
	pending  map[simtime.Tick][]FrameInput
}

// NewClientPlayoutBuffer builds a buffer that treats every tick up to
// startConsumed as already consumed; startConsumed is the tick the
// client's world snapshot was taken at.
func NewClientPlayoutBuffer(fba uint64, startConsumed simtime.Tick) *ClientPlayoutBuffer {
	return &ClientPlayoutBuffer{
		fba:      fba,
		consumed: startConsumed,
		pending:  make(map[simtime.Tick][]FrameInput),
	}
}

// Insert records one frame's broadcast input. Frames older than what has
// already been consumed are dropped as stale.
func (b *ClientPlayoutBuffer) Insert(frame simtime.Tick, inputs []FrameInput) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if frame <= b.consumed {
		return
	}
	b.pending[frame] = inputs
	if !b.hasMax || frame > b.maxFrame {
		b.maxFrame = frame
		b.hasMax = true
	}
}

// ConsumedFrame returns the last frame applied locally.
func (b *ClientPlayoutBuffer) ConsumedFrame() simtime.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed
}

// Backlog reports how many frames beyond the last consumed one have
// already arrived.
func (b *ClientPlayoutBuffer) Backlog() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backlogLocked()
}

func (b *ClientPlayoutBuffer) backlogLocked() uint64 {
	if !b.hasMax || b.maxFrame <= b.consumed {
		return 0
	}
	return uint64(b.maxFrame - b.consumed)
}

// AdvanceCount returns how many frames to consume this wall-clock tick,
// per spec.md §4.11's scaled catch-up formula: 1x up to fba frames
// buffered, 2x up to 2*fba, 3x up to 3*fba, else drain everything beyond
// 3*fba in one go.
func (b *ClientPlayoutBuffer) AdvanceCount() uint64 {
	b.mu.Lock()
	backlog := b.backlogLocked()
	fba := b.fba
	b.mu.Unlock()

	if fba == 0 {
		fba = 1
	}
	switch {
	case backlog == 0:
		return 0
	case backlog <= fba:
		return 1
	case backlog <= fba*2:
		return 2
	case backlog <= fba*3:
		return 3
	default:
		return backlog - fba*3
	}
}

// TryConsume pops the next frame after the last consumed one, if it has
// arrived. It returns ok == false if the immediately following frame
// hasn't been received yet, even if later frames are already buffered
// (frames must apply in order).
func (b *ClientPlayoutBuffer) TryConsume() (simtime.Tick, []FrameInput, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.consumed + 1
	inputs, ok := b.pending[next]
	if !ok {
		return 0, nil, false
	}
	delete(b.pending, next)
	b.consumed = next
	return next, inputs, true
}
