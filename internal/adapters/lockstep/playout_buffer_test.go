package lockstep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/simtime"
)

func TestClientPlayoutBuffer_AdvanceCountScalesWithBacklog(t *testing.T) {
	b := NewClientPlayoutBuffer(4, 0)

	require.Equal(t, uint64(0), b.AdvanceCount(), "nothing buffered yet")

	b.Insert(simtime.Tick(4), []FrameInput{{AuthentID: 1}})
	require.Equal(t, uint64(1), b.AdvanceCount(), "backlog == fba advances 1x")

	b.Insert(simtime.Tick(8), []FrameInput{{AuthentID: 1}})
	require.Equal(t, uint64(2), b.AdvanceCount(), "backlog == 2*fba advances 2x")

	b.Insert(simtime.Tick(12), []FrameInput{{AuthentID: 1}})
	require.Equal(t, uint64(3), b.AdvanceCount(), "backlog == 3*fba advances 3x")

	b.Insert(simtime.Tick(20), []FrameInput{{AuthentID: 1}})
	require.Equal(t, uint64(8), b.AdvanceCount(), "backlog beyond 3*fba drains the rest")
}

func TestClientPlayoutBuffer_TryConsumeRequiresInOrderArrival(t *testing.T) {
	b := NewClientPlayoutBuffer(4, 10)

	b.Insert(simtime.Tick(12), []FrameInput{{AuthentID: 2}})
	_, _, ok := b.TryConsume()
	require.False(t, ok, "frame 11 hasn't arrived, even though frame 12 has")

	b.Insert(simtime.Tick(11), []FrameInput{{AuthentID: 1}})
	frame, inputs, ok := b.TryConsume()
	require.True(t, ok)
	require.Equal(t, simtime.Tick(11), frame)
	require.Equal(t, []FrameInput{{AuthentID: 1}}, inputs)

	frame, inputs, ok = b.TryConsume()
	require.True(t, ok)
	require.Equal(t, simtime.Tick(12), frame)
	require.Equal(t, []FrameInput{{AuthentID: 2}}, inputs)
}

func TestClientPlayoutBuffer_InsertDropsStaleFrames(t *testing.T) {
	b := NewClientPlayoutBuffer(4, 10)
	b.Insert(simtime.Tick(5), []FrameInput{{AuthentID: 1}})
	require.Equal(t, uint64(0), b.Backlog(), "frame at or before consumed is stale")
}

func TestClientPlayoutBuffer_ZeroFBATreatedAsOne(t *testing.T) {
	b := NewClientPlayoutBuffer(0, 0)
	b.Insert(simtime.Tick(1), []FrameInput{{AuthentID: 1}})
	require.Equal(t, uint64(1), b.AdvanceCount())
}
