// Package scheduler runs the fixed per-tick system sequence of spec.md §2:
// itinerary update, routing, traffic/train decisions, physics, dispatcher
// refresh, market clearing, building AI. It is the single place that owns
// the order systems run in — no two systems touching the same resource
// ever run concurrently, so the worker-pool fan-out used inside a step
// (grounded on the teacher's goroutine-per-ship pattern in
// run_parallel_manufacturing_coordinator.go) never needs its own locking.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/simcore/simcore/internal/adapters/metrics"
	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/dispatch"
	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/pathfinder"
	"github.com/simcore/simcore/internal/domain/railway"
	"github.com/simcore/simcore/internal/domain/router"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/spatial"
	"github.com/simcore/simcore/internal/domain/traffic"
	"github.com/simcore/simcore/internal/domain/world"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

// TicksPerRealSecond paces the real-time loop; RunRealtime uses this to
// build a rate.Limiter, the same construct the teacher uses to pace
// outbound API calls in internal/adapters/api/client.go.
const TicksPerRealSecond = simtime.TicksPerRealSecond

const (
	humanWalkSpeed   = 1.4 // m/s, spec.md leaves pedestrian speed unspecified
	vehicleAccel     = 3.0
	vehicleDecel     = 6.0
	neighborQueryRad = 20.0
	arrivalRadius    = 3.0
	trainLookaheadPad = 5.0
)

// Scheduler owns every system's shared dependencies and runs them in the
// one fixed order spec.md §2 specifies. Entity death (world.MarkForDeath +
// Flush) is the caller's responsibility, invoked between ticks alongside
// command-log application.
type Scheduler struct {
	World    *world.World
	Map      *mapmodel.Map
	Index    *spatial.Grid[world.EntityRef]
	Market   *market.Market
	Dispatch *dispatch.Registry
	Rails    *railway.ReservationTable
	Paths    *pathfinder.Pathfinder
	Clock    *simtime.Clock
	RNG      *rng.Provider
	Logger   common.SimLogger

	TickMetrics   *metrics.TickMetricsCollector
	MarketMetrics *metrics.MarketMetricsCollector

	handles map[world.EntityRef]spatial.Handle

	// decisions is transient per-tick scratch state: traffic's output for
	// each vehicle, consumed by the physics step immediately after.
	mu               sync.Mutex
	vehicleDecisions map[world.VehicleID]traffic.Decision
	trainResults     map[world.TrainID]railway.Result
}

func New(w *world.World, m *mapmodel.Map, mkt *market.Market, dispatchReg *dispatch.Registry, clock *simtime.Clock, provider *rng.Provider, logger common.SimLogger) *Scheduler {
	return &Scheduler{
		World:    w,
		Map:      m,
		Index:    spatial.NewGrid[world.EntityRef](neighborQueryRad),
		Market:   mkt,
		Dispatch: dispatchReg,
		Rails:    railway.NewReservationTable(),
		Paths:    pathfinder.New(m),
		Clock:    clock,
		RNG:      provider,
		Logger:   logger,

		TickMetrics:   metrics.NewTickMetricsCollector(),
		MarketMetrics: metrics.NewMarketMetricsCollector(),

		handles:          make(map[world.EntityRef]spatial.Handle),
		vehicleDecisions: make(map[world.VehicleID]traffic.Decision),
		trainResults:     make(map[world.TrainID]railway.Result),
	}
}

// Track registers an entity's position in the spatial index so traffic
// decisions can find it as a neighbor. Callers spawn through world.World
// and then Track the resulting ref; MarkForDeath + Flush handles removal.
func (s *Scheduler) Track(ref world.EntityRef, pos geom.Vec2) {
	s.handles[ref] = s.Index.Insert(pos, ref)
}

func (s *Scheduler) setPos(ref world.EntityRef, pos geom.Vec2) {
	if h, ok := s.handles[ref]; ok {
		s.Index.SetPosition(h, pos)
	}
}

// Tick runs exactly one logical frame: the fixed system sequence, each
// step timed via TickMetrics, followed by a spatial maintenance pass and
// then the clock advance. Its wall-clock readings feed only TickMetrics;
// no simulation decision depends on them (spec.md §5).
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()

	s.timeStep("itinerary", s.stepItinerary)
	s.timeStep("routing", s.stepRouting)
	s.timeStep("traffic_train", func() { s.stepTrafficAndTrain(ctx) })
	s.timeStep("physics", s.stepPhysics)
	s.timeStep("dispatcher", s.stepDispatcherRefresh)
	s.timeStep("market", s.stepMarketClearing)
	s.timeStep("building_ai", s.stepBuildingAI)

	s.Index.Maintain()
	s.Clock.Advance()

	if s.TickMetrics != nil {
		s.TickMetrics.RecordTick(time.Since(start).Seconds())
	}
}

// timeStep wraps one system step with a wall-clock duration measurement
// for Prometheus only; this is operational telemetry, not simulation
// logic, so it does not violate spec.md §5's "no system observes
// wall-clock time" rule — no decision here depends on the measured value.
func (s *Scheduler) timeStep(name string, fn func()) {
	start := time.Now()
	fn()
	if s.TickMetrics != nil {
		s.TickMetrics.RecordStep(name, time.Since(start).Seconds())
	}
}

// stepItinerary moves every vehicle, train and outside-walking human along
// its local path by last tick's speed (spec.md §2 step 1); physics (step
// 4, later this same tick) then adjusts that speed for next tick.
func (s *Scheduler) stepItinerary() {
	tick := s.Clock.Tick()

	s.World.Vehicles.Each(func(_ world.VehicleID, v *world.Vehicle) {
		if v.State != traffic.StateDriving && v.State != traffic.StatePanicking {
			return
		}
		v.Pos = v.Itinerary.Update(v.Pos, v.Speed*simtime.TickPeriod, tick, s.Map)
		s.setPos(world.RefOf(world.KindVehicle, v.ID), v.Pos)
	})

	s.World.Trains.Each(func(_ world.TrainID, t *world.Train) {
		t.Pos = t.Itinerary.Update(t.Pos, t.Speed*simtime.TickPeriod, tick, s.Map)
		t.PushHistory(t.Pos, 256)
		s.setPos(world.RefOf(world.KindTrain, t.ID), t.Pos)
	})

	s.World.Humans.Each(func(_ world.HumanID, h *world.Human) {
		if h.Location != world.LocationOutside {
			return
		}
		h.Pos = h.Itinerary.Update(h.Pos, humanWalkSpeed*simtime.TickPeriod, tick, s.Map)
		s.setPos(world.RefOf(world.KindHuman, h.ID), h.Pos)
	})
}

// stepRouting advances every active human router by one gating evaluation
// (spec.md §2 step 2, §4.5).
func (s *Scheduler) stepRouting() {
	now := s.Clock.Now()
	s.World.Humans.Each(func(_ world.HumanID, h *world.Human) {
		if !h.Router.IsActive() {
			return
		}
		step, ok := h.Router.CurrentStep()
		if !ok {
			return
		}
		ctx := router.StepContext{
			ItineraryEnded:    h.Itinerary.HasEnded(now),
			WithinArrivalDist: h.Pos.DistanceTo(step.Pos) <= arrivalRadius,
			VehicleParked:     true,
			VehicleReachable:  true,
			BuildingExists:    true,
		}
		if h.InBuilding != (mapmodel.BuildingID{}) {
			_, ctx.BuildingExists = s.Map.Building(h.InBuilding)
		}
		h.Router.Advance(ctx)
		s.applyRouterStep(h, step.Kind)
	})
}

// applyRouterStep performs the side effect of the step that just fired
// terminal (spec.md §4.5's instantaneous actions): crossing the
// Human/Vehicle boundary, or Human/Building boundary.
func (s *Scheduler) applyRouterStep(h *world.Human, kind router.StepKind) {
	switch kind {
	case router.StepGetOutBuilding:
		h.Location = world.LocationOutside
	case router.StepGetInBuilding:
		h.Location = world.LocationInBuilding
		h.InBuilding = h.Router.Destination().Building
	case router.StepGetInVehicle:
		h.Location = world.LocationInVehicle
	case router.StepGetOutVehicle:
		h.Location = world.LocationOutside
	}
}

// stepTrafficAndTrain computes each driving vehicle's desired speed/dir
// (spec.md §4.6) and each train's reservation outcome (spec.md §4.7).
// Vehicles are fanned out across goroutines bounded by GOMAXPROCS, each
// writing its decision under mu; trains run one at a time, in ID order,
// since they share the reservation table.
func (s *Scheduler) stepTrafficAndTrain(ctx context.Context) {
	clear(s.vehicleDecisions)
	clear(s.trainResults)

	vehicleIDs := s.World.Vehicles.IDs()
	s.parallelEach(len(vehicleIDs), func(i int) {
		id := vehicleIDs[i]
		v, ok := s.World.Vehicles.Get(id)
		if !ok || (v.State != traffic.StateDriving && v.State != traffic.StatePanicking) {
			return
		}
		decision := s.decideVehicle(v)
		s.mu.Lock()
		s.vehicleDecisions[id] = decision
		s.mu.Unlock()
	})

	trainIDs := s.World.Trains.IDs()
	for _, id := range trainIDs {
		t, ok := s.World.Trains.Get(id)
		if !ok {
			continue
		}
		s.trainResults[id] = s.processTrain(t)
	}
}

func (s *Scheduler) decideVehicle(v *world.Vehicle) traffic.Decision {
	self := world.RefOf(world.KindVehicle, v.ID)
	var neighbors []traffic.Neighbor
	for _, r := range s.Index.QueryAround(v.Pos, neighborQueryRad) {
		if r.Owner == self || r.Owner.Kind != world.KindVehicle {
			continue
		}
		other, ok := s.World.Vehicles.Get(world.As[world.VehicleTag](r.Owner))
		if !ok {
			continue
		}
		neighbors = append(neighbors, traffic.Neighbor{
			ID:      traffic.AgentID(r.Owner.Index),
			Pos:     other.Pos,
			Heading: other.Heading,
			Speed:   other.Speed,
		})
	}

	next, hasNext := v.Itinerary.PeekLocalTarget()
	control, limit, atEnd := s.nearestLaneControl(v.Pos)

	in := traffic.Input{
		Self:             traffic.AgentID(v.ID.Index()),
		Pos:              v.Pos,
		Heading:          v.Heading,
		Speed:            v.Speed,
		State:            v.State,
		Decel:            vehicleDecel,
		MinTurningRadius: 4.0,
		NextWaypoint:     next,
		HasWaypoint:      hasNext,
		LaneSpeedLimit:   limit,
		SpeedFactor:      1.0,
		Control:          control,
		AtLaneEnd:        atEnd,
	}
	return traffic.Decide(in, neighbors, &v.TrafficMemory, s.Clock.Now().TimestampSeconds, s.RNG)
}

// nearestLaneControl does a linear scan over driving lanes for the one
// closest to pos. A real deployment would reuse the map's own spatial
// index (mapmodel.Map.Index()); a scan is adequate at the map sizes this
// simulation targets and keeps this step free of a second index to keep
// in sync.
func (s *Scheduler) nearestLaneControl(pos geom.Vec2) (mapmodel.TrafficControl, float64, bool) {
	best := 1e18
	var bestLane *mapmodel.Lane
	s.Map.EachLane(func(_ mapmodel.LaneID, l *mapmodel.Lane) {
		if l.Kind() != mapmodel.LaneDriving {
			return
		}
		end := l.Polyline().Last().XY()
		d := pos.DistanceTo2(end)
		if d < best {
			best = d
			bestLane = l
		}
	})
	if bestLane == nil {
		return mapmodel.ControlAlways, 10.0, false
	}
	atEnd := pos.DistanceTo(bestLane.Polyline().Last().XY()) < arrivalRadius
	return bestLane.Control(), bestLane.SpeedLimit(), atEnd
}

func (s *Scheduler) processTrain(t *world.Train) railway.Result {
	current, ok := t.Itinerary.CurrentTraversable()
	if !ok {
		return railway.Result{}
	}
	currentLen := s.traversableLength(current)
	stopDist := (t.Speed * t.Speed) / max(2*t.Decel, 1e-6)

	var upcoming []railway.UpcomingSegment
	for _, trav := range t.Itinerary.UpcomingTraversables() {
		seg := railway.UpcomingSegment{Trav: trav, Length: s.traversableLength(trav)}
		if trav.Kind == pathfinder.TraversableTurn {
			if turn, ok := s.Map.Turn(trav.Turn); ok {
				seg.Intersection = turn.Intersection()
				if inter, ok := s.Map.Intersection(seg.Intersection); ok {
					seg.IsExclusive = len(inter.Roads()) > 2
				}
			}
		}
		upcoming = append(upcoming, seg)
	}

	_, hasNext := t.Itinerary.PeekLocalTarget()
	atTerminal := !hasNext
	return railway.Process(s.Rails, t.RailID, &t.RailMemory, current, currentLen, t.Speed, upcoming, stopDist+trainLookaheadPad, t.Length, atTerminal)
}

func (s *Scheduler) traversableLength(trav pathfinder.Traversable) float64 {
	switch trav.Kind {
	case pathfinder.TraversableLane:
		if l, ok := s.Map.Lane(trav.Lane); ok {
			return l.Polyline().Length()
		}
	case pathfinder.TraversableTurn:
		if t, ok := s.Map.Turn(trav.Turn); ok {
			return t.Polyline().Length()
		}
	}
	return 0
}

// stepPhysics adjusts each vehicle/train's scalar speed toward the target
// the previous step computed, bounded by acceleration (spec.md §2 step 4).
// The new Speed is what next tick's itinerary-update step will move by.
func (s *Scheduler) stepPhysics() {
	dt := simtime.TickPeriod
	s.World.Vehicles.Each(func(id world.VehicleID, v *world.Vehicle) {
		decision, ok := s.vehicleDecisions[id]
		if !ok {
			return
		}
		v.Speed = approach(v.Speed, decision.DesiredSpeed, vehicleAccel, vehicleDecel, dt)
		v.Heading = decision.DesiredDir
	})
	s.World.Trains.Each(func(id world.TrainID, t *world.Train) {
		result, ok := s.trainResults[id]
		if !ok {
			return
		}
		target := t.MaxSpeed
		if result.DesiredSpeedCapped || result.Aborted {
			target = 0
		}
		t.Speed = approach(t.Speed, target, t.Accel, t.Decel, dt)
	})
}

func approach(current, target, accel, decel, dt float64) float64 {
	if target > current {
		current += accel * dt
		if current > target {
			current = target
		}
	} else if target < current {
		current -= decel * dt
		if current < target {
			current = target
		}
	}
	return current
}

// stepDispatcherRefresh re-indexes live dispatchable entities (spec.md §2
// step 5, §4.8): trucks against driving lanes, trains against rail lanes.
func (s *Scheduler) stepDispatcherRefresh() {
	if s.Dispatch == nil {
		return
	}
	trucks := make(map[dispatch.EntityRef]geom.Vec2)
	s.World.Vehicles.Each(func(id world.VehicleID, v *world.Vehicle) {
		if v.HasDispatchHandle {
			trucks[dispatch.EntityRef(id.Index())] = v.Pos
		}
	})
	s.Dispatch.Update(s.Map, dispatch.KindSmallTruck, trucks, func(dispatch.RequesterRef) bool { return true })

	trains := make(map[dispatch.EntityRef]geom.Vec2)
	s.World.Trains.Each(func(id world.TrainID, t *world.Train) {
		trains[dispatch.EntityRef(id.Index())] = t.Pos
	})
	s.Dispatch.Update(s.Map, dispatch.KindFreightTrain, trains, func(dispatch.RequesterRef) bool { return true })
}

// stepMarketClearing runs order-book matching once per tick (spec.md §2
// step 6, §4.9), recording trade metrics on the way out.
func (s *Scheduler) stepMarketClearing() {
	if s.Market == nil {
		return
	}
	trades := s.Market.MakeTrades(s.Logger)
	if s.MarketMetrics == nil {
		return
	}
	for _, tr := range trades {
		s.MarketMetrics.RecordTrade(tr.Item, tradeKindLabel(tr.Kind), tr.Qty)
	}
}

// stepBuildingAI is the spec's final, least-specified step: "market-
// adjacent actions... go through AI" (spec.md §4.10). The per-building
// production/consumption policy itself is out of this package's scope
// (no component of the spec defines it beyond "companies trade through the
// market"); this step's job is only to make sure every registered company
// keeps a standing sell order open so the market has something to clear
// against, mirroring the teacher's "always keep one outstanding request
// per active pursuit" idiom from fleet.Selector.
func (s *Scheduler) stepBuildingAI() {
	if s.Market == nil {
		return
	}
	for _, symbol := range s.Market.Items() {
		if book, ok := s.Market.Book(symbol); ok {
			book.ClearOrders()
		}
	}
	s.World.Companies.Each(func(_ world.CompanyID, c *world.Company) {
		for _, symbol := range s.Market.Items() {
			book, ok := s.Market.Book(symbol)
			if !ok {
				continue
			}
			if book.Capital(c.Participant) <= 0 {
				continue
			}
			if order, err := market.NewSellOrder(c.Participant, c.Pos, book.Capital(c.Participant), 0); err == nil {
				book.RegisterSell(order)
			}
		}
	})
}

// parallelEach fans work out across goroutines bounded by GOMAXPROCS,
// grounded on run_parallel_manufacturing_coordinator.go's worker-pool
// pattern, generalized from per-ship tasks to per-vehicle decisions.
func (s *Scheduler) parallelEach(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	var wg sync.WaitGroup
	next := make(chan int, n)
	for i := 0; i < n; i++ {
		next <- i
	}
	close(next)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				fn(i)
			}
		}()
	}
	wg.Wait()
}

func tradeKindLabel(k market.TradeKind) string {
	switch k {
	case market.TradeLocal:
		return "local"
	case market.TradeExternalBuy:
		return "external_buy"
	case market.TradeExternalSell:
		return "external_sell"
	default:
		return "unknown"
	}
}

// RunRealtime drives Tick in a loop paced at TicksPerRealSecond (spec.md
// §6's 20Hz), grounded on the teacher's rate.Limiter use in
// internal/adapters/api/client.go, here pacing the simulation loop rather
// than outbound HTTP calls. It blocks until ctx is cancelled.
func RunRealtime(ctx context.Context, s *Scheduler) error {
	limiter := rate.NewLimiter(rate.Limit(TicksPerRealSecond), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		s.Tick(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
