// Package hud turns simulation snapshots into the data the dashboard panel
// draws: the route map, the bus marker, door and inspector icons, two-digit
// counters and the steering wheel angle. It issues no graphics calls.
package hud

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"

	"bus-simulator/internal/bus"
	"bus-simulator/internal/route"
)

const (
	maxSteerDeg   = 28.0
	steerResponse = 8.0
	shakeRate     = 10.0
)

// Panel is the rectangle of the dashboard screen, in UV, the route map occupies.
type Panel struct {
	UMin, UMax float32
	VMin, VMax float32
}

func DefaultPanel() Panel {
	return Panel{UMin: 0.42, UMax: 0.97, VMin: 0.32, VMax: 0.93}
}

// MapToUV maps a normalized [-1,1] map point into panel UV space.
func (p Panel) MapToUV(pt mgl32.Vec2) mgl32.Vec2 {
	u := (pt.X() + 1) * 0.5
	v := (pt.Y() + 1) * 0.5
	return mgl32.Vec2{p.UMin + (p.UMax-p.UMin)*u, p.VMin + (p.VMax-p.VMin)*v}
}

type StopMarker struct {
	RouteIndex int        `json:"routeIndex"`
	UV         mgl32.Vec2 `json:"uv"`
	Digit      int        `json:"digit"` // stop ordinal mod 10
}

// Counter is a value split into the two digits the panel can show.
type Counter struct {
	Value int `json:"value"`
	Tens  int `json:"tens"`
	Ones  int `json:"ones"`
}

func NewCounter(n int) Counter {
	n = lo.Clamp(n, 0, 99)
	return Counter{Value: n, Tens: n / 10, Ones: n % 10}
}

// View is everything the dashboard shows for one frame.
type View struct {
	RouteUV          []mgl32.Vec2 `json:"routeUV"`
	Stops            []StopMarker `json:"stops"`
	BusUV            mgl32.Vec2   `json:"busUV"`
	DoorOpen         bool         `json:"doorOpen"`
	InspectorVisible bool         `json:"inspectorVisible"`
	Passengers       Counter      `json:"passengers"`
	Fines            Counter      `json:"fines"`
	SteeringDeg      float32      `json:"steeringDeg"`
	ShakeY           float32      `json:"shakeY"`
}

// Model keeps the frame-to-frame state of the dashboard (wheel angle, cabin
// shake) and the precomputed route map.
type Model struct {
	rt      *route.Table
	panel   Panel
	routeUV []mgl32.Vec2
	stops   []StopMarker

	steer      float32
	shakePhase float32
}

func NewModel(rt *route.Table, panel Panel) *Model {
	h := &Model{rt: rt, panel: panel}
	h.routeUV = make([]mgl32.Vec2, rt.Len())
	for i := range h.routeUV {
		h.routeUV[i] = panel.MapToUV(mapPoint(rt, i))
	}
	for _, idx := range rt.Stops() {
		h.stops = append(h.stops, StopMarker{
			RouteIndex: idx,
			UV:         h.routeUV[idx],
			Digit:      rt.StopNumber(idx) % 10,
		})
	}
	return h
}

// Reset zeroes the wheel and shake.
func (h *Model) Reset() {
	h.steer = 0
	h.shakePhase = 0
}

// Update advances the wheel and shake by dt and builds the frame's view.
func (h *Model) Update(st bus.State, dt float64) View {
	target := float32(0)
	if !st.AtStop {
		target = turnRate(h.rt, st.RouteIndex) * maxSteerDeg
	}
	k := lo.Clamp(float32(dt*steerResponse), 0, 1)
	h.steer += (target - h.steer) * k

	var shake float32
	if !st.AtStop {
		h.shakePhase += float32(dt * shakeRate)
		p := float64(h.shakePhase)
		shake = float32(0.008*math.Sin(p) + 0.004*math.Sin(p*2.3))
	}

	return View{
		RouteUV:          h.routeUV,
		Stops:            h.stops,
		BusUV:            h.panel.MapToUV(busMapPoint(h.rt, st)),
		DoorOpen:         st.AtStop,
		InspectorVisible: st.InspectorAboard,
		Passengers:       NewCounter(st.PassengerCount),
		Fines:            NewCounter(st.TotalFines),
		SteeringDeg:      h.steer,
		ShakeY:           shake,
	}
}

func mapPoint(rt *route.Table, i int) mgl32.Vec2 {
	p := rt.MapPoint(i)
	return mgl32.Vec2{float32(p.X()), float32(p.Y())}
}

// busMapPoint places the bus between the current and next map points.
func busMapPoint(rt *route.Table, st bus.State) mgl32.Vec2 {
	c := mapPoint(rt, st.RouteIndex)
	n := mapPoint(rt, rt.Next(st.RouteIndex))
	return c.Add(n.Sub(c).Mul(float32(st.TravelFraction)))
}

// turnRate is the signed sine of the turn between the current segment and
// the one after it, in [-1,1].
func turnRate(rt *route.Table, i int) float32 {
	a := mapPoint(rt, i)
	b := mapPoint(rt, rt.Next(i))
	c := mapPoint(rt, rt.Next(rt.Next(i)))
	v1, v2 := b.Sub(a), c.Sub(b)
	if v1.Len() == 0 || v2.Len() == 0 {
		return 0
	}
	v1, v2 = v1.Normalize(), v2.Normalize()
	return mgl32.Clamp(v1.X()*v2.Y()-v1.Y()*v2.X(), -1, 1)
}
