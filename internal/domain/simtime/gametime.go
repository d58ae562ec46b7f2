// Package simtime implements the simulation's logical clock: spec.md §6
// fixes a 50ms tick period (20 ticks/s real time) and requires that no
// system ever read the wall clock for logic (spec.md §5 "Determinism").
// Tick is the only authority on elapsed simulation time.
package simtime

import "fmt"

// TickPeriod is the simulated duration of one tick, in seconds.
const TickPeriod = 0.05

// TicksPerRealSecond is the real-time tick rate at 1x simulation speed.
const TicksPerRealSecond = 20

// SecondsPerDay is the length of one in-world day.
const SecondsPerDay = 86400

// Tick is the monotonically increasing logical frame counter (spec.md §5
// rule 2: "no tick is skipped").
type Tick uint64

// GameTime derives a human-readable day/time breakdown from a tick count
// and the elapsed simulated seconds, per spec.md §6.
type GameTime struct {
	TickID           Tick
	TimestampSeconds float64
	Hour, Minute     int
	Second           float64
}

// FromTick derives the GameTime for a given tick, counting from world
// creation (tick 0). It performs no I/O and reads no wall clock.
func FromTick(tick Tick) GameTime {
	total := float64(tick) * TickPeriod
	dayTime := total
	for dayTime >= SecondsPerDay {
		dayTime -= SecondsPerDay
	}
	hour := int(dayTime) / 3600
	minute := (int(dayTime) % 3600) / 60
	second := dayTime - float64(hour*3600+minute*60)
	return GameTime{
		TickID:           tick,
		TimestampSeconds: total,
		Hour:             hour,
		Minute:           minute,
		Second:           second,
	}
}

func (g GameTime) String() string {
	return fmt.Sprintf("tick=%d day_time=%02d:%02d:%05.2f", g.TickID, g.Hour, g.Minute, g.Second)
}

// Clock is the scheduler's logical time source: it only ever advances by
// whole ticks via Advance, driven by the tick loop, never by wall-clock
// reads. Replay and live play use the same Clock implementation so replayed
// ticks reproduce identical GameTime values.
type Clock struct {
	current Tick
}

// NewClock creates a Clock starting at the given tick (0 for a fresh world,
// or a loaded snapshot's persisted tick).
func NewClock(start Tick) *Clock {
	return &Clock{current: start}
}

// Now returns the current tick's GameTime.
func (c *Clock) Now() GameTime { return FromTick(c.current) }

// Tick returns the raw current tick counter.
func (c *Clock) Tick() Tick { return c.current }

// Advance moves the clock forward by exactly one tick, as the scheduler
// does once per loop iteration (spec.md §5 rule 2).
func (c *Clock) Advance() Tick {
	c.current++
	return c.current
}

// Set overwrites the current tick, used only by SetGameTime commands and by
// snapshot load (spec.md §6 "SetGameTime").
func (c *Clock) Set(t Tick) { c.current = t }
