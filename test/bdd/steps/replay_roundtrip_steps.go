package steps

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"

	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/commandlog"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/terrain"
	"github.com/simcore/simcore/internal/domain/world"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

// replayRoundTripContext drives spec.md §8 scenario 5 ("Command log replay
// determinism"), grounded on commandlog_test.go's newTestLog helper and
// TestReplay_RecordsAndReappliesInOrder.
type replayRoundTripContext struct {
	log     *commandlog.CommandLog
	ticks   []simtime.Tick
	entries []commandlog.LoggedCommand

	ticksSeen    []simtime.Tick
	replayLogger *common.BufferingLogger
	replayErrs   []error
}

func newReplayLog() *commandlog.CommandLog {
	h := &commandlog.Handlers{
		World:  world.New(),
		Map:    mapmodel.NewMap(terrain.NewHeightmap()),
		Market: market.New(),
		Clock:  simtime.NewClock(0),
		RNG:    rng.New(1),
		Logger: common.NewBufferingLogger(),
	}
	mediator := common.NewMediator()
	if err := h.Register(mediator); err != nil {
		panic(err)
	}
	return commandlog.New(mediator)
}

func (c *replayRoundTripContext) reset() {
	*c = replayRoundTripContext{}
}

func (c *replayRoundTripContext) aCommandLogRecordingIsEnabled() error {
	c.log = newReplayLog()
	c.log.EnableReplay(true)
	return nil
}

func (c *replayRoundTripContext) theFollowingCommandsArePushedAndApplied(table *godog.Table) error {
	ctx := context.Background()
	ticksApplied := make(map[simtime.Tick]bool)
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		tick, err := strconv.ParseUint(row.Cells[0].Value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tick %q: %w", row.Cells[0].Value, err)
		}
		author := row.Cells[1].Value
		text := row.Cells[2].Value
		c.log.Push(simtime.Tick(tick), 1, commandlog.SendMessage{Author: author, Text: text})
		ticksApplied[simtime.Tick(tick)] = true
	}
	for tick := range ticksApplied {
		if errs := c.log.ApplyTick(ctx, tick); len(errs) != 0 {
			return fmt.Errorf("unexpected apply errors at tick %d: %v", tick, errs)
		}
	}
	c.entries = c.log.Entries()
	return nil
}

func (c *replayRoundTripContext) theRecordedEntriesAreReplayedAgainstAFreshWorld() error {
	h := &commandlog.Handlers{
		World:  world.New(),
		Map:    mapmodel.NewMap(terrain.NewHeightmap()),
		Market: market.New(),
		Clock:  simtime.NewClock(0),
		RNG:    rng.New(1),
		Logger: common.NewBufferingLogger(),
	}
	mediator := common.NewMediator()
	if err := h.Register(mediator); err != nil {
		return err
	}
	c.replayLogger = h.Logger.(*common.BufferingLogger)

	c.replayErrs = commandlog.Replay(context.Background(), mediator, c.entries, func(tick simtime.Tick) {
		c.ticksSeen = append(c.ticksSeen, tick)
	})
	if len(c.replayErrs) != 0 {
		return fmt.Errorf("unexpected replay errors: %v", c.replayErrs)
	}
	return nil
}

func (c *replayRoundTripContext) theReplaySeesTicksAndInOrder(a, b int) error {
	want := []simtime.Tick{simtime.Tick(a), simtime.Tick(b)}
	if len(c.ticksSeen) != len(want) {
		return fmt.Errorf("expected ticks %v, got %v", want, c.ticksSeen)
	}
	for i, t := range want {
		if c.ticksSeen[i] != t {
			return fmt.Errorf("expected ticks %v, got %v", want, c.ticksSeen)
		}
	}
	return nil
}

func (c *replayRoundTripContext) theFreshWorldsLoggerRecordedEntries(n int) error {
	if len(c.replayLogger.Entries) != n {
		return fmt.Errorf("expected %d logged entries, got %d", n, len(c.replayLogger.Entries))
	}
	return nil
}

func InitializeReplayRoundTripScenario(ctx *godog.ScenarioContext) {
	c := &replayRoundTripContext{}
	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return goctx, nil
	})

	ctx.Step(`^a command log recording is enabled$`, c.aCommandLogRecordingIsEnabled)
	ctx.Step(`^the following commands are pushed and applied$`, c.theFollowingCommandsArePushedAndApplied)
	ctx.Step(`^the recorded entries are replayed against a fresh world$`, c.theRecordedEntriesAreReplayedAgainstAFreshWorld)
	ctx.Step(`^the replay sees ticks (\d+) and (\d+) in order$`, c.theReplaySeesTicksAndInOrder)
	ctx.Step(`^the fresh world's logger recorded (\d+) entries$`, c.theFreshWorldsLoggerRecordedEntries)
}
