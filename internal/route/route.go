package route

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultScale converts normalized map coordinates into world units.
const DefaultScale = 5.0

// defaultMap is the closed loop drawn on the HUD, in normalized [-1,1] coordinates.
var defaultMap = []mgl64.Vec2{
	{-0.6, -0.7},
	{0.3, -0.5},
	{0.4, -0.2},
	{0.4, 0.0},
	{0.6, 0.1},
	{0.6, 0.4},
	{0.4, 0.4},
	{0.4, 0.6},
	{-0.1, 0.7},
	{-0.3, 0.6},
	{-0.6, 0.6},
	{-0.5, 0.0},
}

var defaultStops = []int{0, 1, 2, 4, 5, 7, 8, 9, 10, 11}

// Table is an immutable closed loop of route points. Index N-1 connects back to 0.
type Table struct {
	mapPts  []mgl64.Vec2 // normalized HUD coordinates
	points  []mgl64.Vec3 // world coordinates on the XZ plane
	stops   []int
	ordinal map[int]int // route index -> position in stops
}

// New builds a Table from normalized 2D points, the subset of indices that are
// stops, and the scale applied when projecting onto the world XZ plane.
func New(mapPts []mgl64.Vec2, stops []int, scale float64) (*Table, error) {
	if len(mapPts) < 2 {
		return nil, errors.New("route needs at least two points")
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("invalid route scale: %v", scale)
	}
	t := &Table{
		mapPts:  make([]mgl64.Vec2, len(mapPts)),
		points:  make([]mgl64.Vec3, len(mapPts)),
		stops:   make([]int, 0, len(stops)),
		ordinal: make(map[int]int, len(stops)),
	}
	copy(t.mapPts, mapPts)
	for i, p := range mapPts {
		t.points[i] = mgl64.Vec3{p.X() * scale, 0, p.Y() * scale}
	}
	for _, idx := range stops {
		if idx < 0 || idx >= len(mapPts) {
			return nil, fmt.Errorf("stop index %d out of range [0,%d)", idx, len(mapPts))
		}
		if _, dup := t.ordinal[idx]; dup {
			return nil, fmt.Errorf("duplicate stop index %d", idx)
		}
		t.ordinal[idx] = len(t.stops)
		t.stops = append(t.stops, idx)
	}
	return t, nil
}

// Default returns the built-in twelve point loop with ten stops.
func Default() *Table {
	t, err := New(defaultMap, defaultStops, DefaultScale)
	if err != nil {
		panic(err)
	}
	return t
}

// Scaled returns the built-in loop projected with a custom scale.
func Scaled(scale float64) (*Table, error) {
	return New(defaultMap, defaultStops, scale)
}

func (t *Table) Len() int { return len(t.points) }

// Wrap maps any integer onto [0,N).
func (t *Table) Wrap(i int) int {
	n := len(t.points)
	return ((i % n) + n) % n
}

// Next returns the index following i on the loop.
func (t *Table) Next(i int) int { return t.Wrap(i + 1) }

// PointAt returns the world position of route point i.
func (t *Table) PointAt(i int) mgl64.Vec3 { return t.points[t.Wrap(i)] }

// MapPoint returns the normalized HUD coordinate of route point i.
func (t *Table) MapPoint(i int) mgl64.Vec2 { return t.mapPts[t.Wrap(i)] }

func (t *Table) IsStop(i int) bool {
	_, ok := t.ordinal[t.Wrap(i)]
	return ok
}

// StopNumber returns the ordinal of route point i among the stops, or -1.
func (t *Table) StopNumber(i int) int {
	if n, ok := t.ordinal[t.Wrap(i)]; ok {
		return n
	}
	return -1
}

// Stops returns the stop indices in declaration order.
func (t *Table) Stops() []int {
	out := make([]int, len(t.stops))
	copy(out, t.stops)
	return out
}

// SegmentLength is the world distance from point i to the next point.
func (t *Table) SegmentLength(i int) float64 {
	return t.PointAt(t.Next(i)).Sub(t.PointAt(i)).Len()
}

// Heading returns the direction of the segment starting at i in degrees,
// 0 pointing along +Z and increasing toward +X.
func (t *Table) Heading(i int) float64 {
	d := t.PointAt(t.Next(i)).Sub(t.PointAt(i))
	if d.X() == 0 && d.Z() == 0 {
		return 0
	}
	h := math.Atan2(d.X(), d.Z()) * 180.0 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}
