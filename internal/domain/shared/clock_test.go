package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockClock_SleepDoesNotBlock(t *testing.T) {
	m := NewMockClock(MockClock{}.CurrentTime)
	before := m.Now()
	m.Sleep(0)
	require.Equal(t, before, m.Now())
}
