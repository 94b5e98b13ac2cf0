package bus

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"bus-simulator/internal/route"
)

type DoorState int

const (
	DoorClosed DoorState = iota
	DoorOpen
)

func (d DoorState) String() string {
	if d == DoorOpen {
		return "open"
	}
	return "closed"
}

func (d DoorState) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// DoorAction is the transfer currently holding the door.
type DoorAction int

const (
	DoorActionNone DoorAction = iota
	DoorActionBoarding
	DoorActionAlighting
)

func (a DoorAction) String() string {
	switch a {
	case DoorActionBoarding:
		return "boarding"
	case DoorActionAlighting:
		return "alighting"
	default:
		return "none"
	}
}

func (a DoorAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// State is a read-only snapshot of the simulation.
type State struct {
	Clock float64 `json:"clock"` // time of the last Advance or Reset

	PassengerCount  int  `json:"passengerCount"` // includes the inspector
	InspectorAboard bool `json:"inspectorAboard"`
	TotalFines      int  `json:"totalFines"`

	RouteIndex     int     `json:"routeIndex"`
	TravelFraction float64 `json:"travelFraction"`
	AtStop         bool    `json:"atStop"`
	StopEnteredAt  float64 `json:"stopEnteredAt"`
	StopNumber     int     `json:"stopNumber"` // -1 while traveling

	Door              DoorState  `json:"door"`
	PendingDoorAction DoorAction `json:"pendingDoorAction"`
	DoorActionTimer   float64    `json:"doorActionTimer"`

	BusPosition mgl64.Vec3 `json:"busPosition"`
	Heading     float64    `json:"heading"` // degrees
}

// Simulation is the authoritative bus state machine. It is not safe for
// concurrent use.
type Simulation struct {
	route *route.Table
	tun   Tunables
	rng   RandSource

	s    State
	cast choreography

	// inspectorExitDeferred is set when the inspector was checked out on
	// arrival while the door was busy; the walk-out starts once it frees up.
	inspectorExitDeferred bool

	events []Event
}

// NewSimulation creates a simulation parked at route index 0 with the dwell
// timer started at now. A nil rng falls back to a fixed seed.
func NewSimulation(rt *route.Table, tun Tunables, rng RandSource, now float64) *Simulation {
	if rt == nil {
		rt = route.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	m := &Simulation{
		route: rt,
		tun:   tun,
		rng:   rng,
		cast:  newChoreography(tun),
	}
	m.Reset(now)
	return m
}

// Reset returns to the initial state: at the first stop, no riders, no fines.
func (m *Simulation) Reset(now float64) {
	m.s = State{
		Clock:         now,
		AtStop:        true,
		StopEnteredAt: now,
		StopNumber:    m.route.StopNumber(0),
		Door:          DoorOpen,
		BusPosition:   m.route.PointAt(0),
		Heading:       m.route.Heading(0),
	}
	m.cast.reset()
	m.inspectorExitDeferred = false
	m.events = nil
}

// Advance moves the simulation forward to now; dt is the elapsed time since
// the previous call.
func (m *Simulation) Advance(now, dt float64) {
	m.s.Clock = now

	if a, done := m.cast.tick(dt); done {
		m.emit(TransitDoneEvent{Time: now, ActorID: a.ID, ActorKind: a.Kind, Phase: a.Phase})
	}

	if m.s.AtStop {
		m.s.Door = DoorOpen
		m.processDoorAction(dt)
		m.startDeferredInspectorExit()
		if now-m.s.StopEnteredAt >= m.tun.StopDwell {
			m.leaveStop(now)
		}
		return
	}

	m.s.Door = DoorClosed
	if m.moveAlongRoute(dt) && m.route.IsStop(m.s.RouteIndex) {
		m.arriveAtStop(now)
	}
}

func (m *Simulation) processDoorAction(dt float64) {
	if m.s.PendingDoorAction == DoorActionNone {
		return
	}
	m.s.DoorActionTimer -= dt
	if m.s.DoorActionTimer <= 0 {
		m.s.PendingDoorAction = DoorActionNone
		m.s.DoorActionTimer = 0
	}
}

func (m *Simulation) leaveStop(now float64) {
	m.s.AtStop = false
	m.s.Door = DoorClosed
	m.s.TravelFraction = 0
	m.s.PendingDoorAction = DoorActionNone
	m.s.DoorActionTimer = 0
	m.emit(DepartEvent{Time: now, RouteIndex: m.s.RouteIndex, StopNumber: m.s.StopNumber, Passengers: m.s.PassengerCount})
	m.s.StopNumber = -1
}

// moveAlongRoute advances the travel fraction and reports whether the bus
// reached the next route point.
func (m *Simulation) moveAlongRoute(dt float64) bool {
	next := m.route.Next(m.s.RouteIndex)
	c := m.route.PointAt(m.s.RouteIndex)
	n := m.route.PointAt(next)

	rate := m.tun.ParametricSpeed
	if rate <= 0 {
		rate = m.tun.WorldSpeed / max(minSegmentLength, n.Sub(c).Len())
	}
	m.s.TravelFraction += rate * dt

	if m.s.TravelFraction >= 1 {
		m.s.TravelFraction = 0
		m.s.RouteIndex = next
		m.s.BusPosition = n
		m.s.Heading = m.route.Heading(next)
		return true
	}
	m.s.BusPosition = c.Add(n.Sub(c).Mul(m.s.TravelFraction))
	return false
}

func (m *Simulation) arriveAtStop(now float64) {
	m.s.AtStop = true
	m.s.Door = DoorOpen
	m.s.StopEnteredAt = now
	m.s.StopNumber = m.route.StopNumber(m.s.RouteIndex)
	m.emit(ArriveEvent{Time: now, RouteIndex: m.s.RouteIndex, StopNumber: m.s.StopNumber, Passengers: m.s.PassengerCount})

	if !m.s.InspectorAboard {
		return
	}
	checked, fines := m.inspectorExitAndFine()
	animated := false
	if !m.cast.active {
		animated = m.startInspectorExit()
	} else {
		m.inspectorExitDeferred = true
	}
	m.emit(InspectionEvent{
		Time:       now,
		RouteIndex: m.s.RouteIndex,
		StopNumber: m.s.StopNumber,
		Checked:    checked,
		Fines:      fines,
		TotalFines: m.s.TotalFines,
		Animated:   animated,
	})
}

// inspectorExitAndFine checks every other rider, adds the fines and takes the
// inspector off the passenger count.
func (m *Simulation) inspectorExitAndFine() (checked, fines int) {
	checked = max(0, m.s.PassengerCount-1)
	fines = drawFines(m.tun.Fines, m.rng, checked)
	m.s.TotalFines += fines
	if m.s.PassengerCount > 0 {
		m.s.PassengerCount--
	}
	m.s.InspectorAboard = false
	return checked, fines
}

func (m *Simulation) startInspectorExit() bool {
	if _, ok := m.cast.spawnExit(); !ok {
		return false
	}
	m.s.PendingDoorAction = DoorActionAlighting
	m.s.DoorActionTimer = m.tun.InspectorMoveTime
	return true
}

func (m *Simulation) startDeferredInspectorExit() {
	if !m.inspectorExitDeferred || m.cast.active || !m.cast.containsInspector() {
		return
	}
	if m.startInspectorExit() {
		m.inspectorExitDeferred = false
	}
}

// canTransfer holds the preconditions shared by all three intents.
func (m *Simulation) canTransfer() bool {
	return m.s.AtStop &&
		!m.cast.active &&
		m.s.PendingDoorAction == DoorActionNone &&
		!m.s.InspectorAboard &&
		!m.inspectorExitDeferred
}

// RequestBoard lets one passenger in. It returns false, changing nothing, if
// the bus is moving, full, or the door is busy.
func (m *Simulation) RequestBoard() bool {
	if !m.canTransfer() || m.s.PassengerCount >= m.tun.Capacity {
		return false
	}
	return m.board(Passenger, m.tun.PassengerMoveTime)
}

// RequestInspectorBoard lets the fare inspector in. The inspector leaves at
// the next stop and fines some of the riders.
func (m *Simulation) RequestInspectorBoard() bool {
	if !m.canTransfer() || m.s.PassengerCount >= m.tun.Capacity {
		return false
	}
	if !m.board(Inspector, m.tun.InspectorMoveTime) {
		return false
	}
	m.s.InspectorAboard = true
	return true
}

func (m *Simulation) board(kind ActorKind, moveTime float64) bool {
	a, ok := m.cast.spawnEnter(kind)
	if !ok {
		return false
	}
	m.s.PassengerCount++
	m.s.PendingDoorAction = DoorActionBoarding
	m.s.DoorActionTimer = moveTime
	m.emit(BoardEvent{Time: m.s.Clock, ActorID: a.ID, ActorKind: kind, Passengers: m.s.PassengerCount})
	return true
}

// RequestAlight lets the earliest seated passenger out.
func (m *Simulation) RequestAlight() bool {
	if !m.canTransfer() || m.s.PassengerCount <= 0 || len(m.cast.seated) == 0 {
		return false
	}
	a, ok := m.cast.spawnExit()
	if !ok {
		return false
	}
	m.s.PassengerCount--
	m.s.PendingDoorAction = DoorActionAlighting
	m.s.DoorActionTimer = m.tun.PassengerMoveTime
	m.emit(AlightEvent{Time: m.s.Clock, ActorID: a.ID, ActorKind: a.Kind, Passengers: m.s.PassengerCount})
	return true
}

func (m *Simulation) State() State { return m.s }

// Seated returns a copy of the seated actors in arrival order.
func (m *Simulation) Seated() []Actor { return m.cast.seatedCopy() }

// Moving returns the actor walking through the door, if any.
func (m *Simulation) Moving() (Actor, bool) {
	if !m.cast.active {
		return Actor{}, false
	}
	return m.cast.moving, true
}

func (m *Simulation) HasMovingActor() bool { return m.cast.active }

func (m *Simulation) Route() *route.Table { return m.route }

func (m *Simulation) Tunables() Tunables { return m.tun }

// DrainEvents returns the events queued since the previous call.
func (m *Simulation) DrainEvents() []Event {
	ev := m.events
	m.events = nil
	return ev
}

func (m *Simulation) emit(ev Event) { m.events = append(m.events, ev) }
