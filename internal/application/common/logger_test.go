package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext_FallsBackToNoOp(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	require.NotPanics(t, func() { logger.Warnf("anything %d", 1) })
}

func TestWithLogger_RoundTrips(t *testing.T) {
	buf := NewBufferingLogger()
	ctx := WithLogger(context.Background(), buf)

	got := LoggerFromContext(ctx)
	got.Warnf("seller %s short on capital", "A")

	require.Len(t, buf.Entries, 1)
	require.Equal(t, "WARN", buf.Entries[0].Level)
	require.Equal(t, "seller A short on capital", buf.Entries[0].Message)
}

func TestBufferingLogger_RecordsAllLevels(t *testing.T) {
	buf := NewBufferingLogger()
	buf.Debugf("d")
	buf.Infof("i")
	buf.Errorf("e")

	require.Len(t, buf.Entries, 3)
	require.Equal(t, []string{"DEBUG", "INFO", "ERROR"}, []string{buf.Entries[0].Level, buf.Entries[1].Level, buf.Entries[2].Level})
}
