package bus

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
)

type ActorKind int

const (
	Passenger ActorKind = iota
	Inspector
)

func (k ActorKind) String() string {
	if k == Inspector {
		return "inspector"
	}
	return "passenger"
}

func (k ActorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Phase is where an actor is in its lifecycle. There is no way back to
// Inside once an actor starts Exiting.
type Phase int

const (
	Entering Phase = iota
	Inside
	Exiting
)

func (p Phase) String() string {
	switch p {
	case Inside:
		return "inside"
	case Exiting:
		return "exiting"
	default:
		return "entering"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Actor is a passenger or the inspector, either seated or walking through the door.
type Actor struct {
	ID    int        `json:"id"`
	Kind  ActorKind  `json:"kind"`
	Skin  int        `json:"skin"`
	Phase Phase      `json:"phase"`
	Pos   mgl64.Vec3 `json:"pos"`

	Start       mgl64.Vec3 `json:"-"`
	Mid         mgl64.Vec3 `json:"-"`
	End         mgl64.Vec3 `json:"-"`
	UseMidpoint bool       `json:"-"`

	T        float64 `json:"t"`
	Duration float64 `json:"duration"`
}

// Cabin describes the bus body the door anchors are derived from.
type Cabin struct {
	Width          float64
	Length         float64
	Height         float64
	FloorThickness float64
	DoorWidth      float64
	Center         mgl64.Vec3
}

func DefaultCabin() Cabin {
	return Cabin{
		Width:          2.4,
		Length:         7.0,
		Height:         0.98,
		FloorThickness: 0.10,
		DoorWidth:      1.20,
		Center:         mgl64.Vec3{0, 1.10, 2.30},
	}
}

// walkHeight is the y of an actor's feet plus the standing offset.
func (c Cabin) walkHeight() float64 {
	floorTop := (c.Center.Y() - c.Height*0.5) + c.FloorThickness*0.5
	return floorTop + 0.25
}

// doorZ is the centre of the front door along the bus length.
func (c Cabin) doorZ() float64 {
	front := -c.Length * 0.5
	return c.Center.Z() + front + c.DoorWidth*0.5
}

// DoorOutside is where actors stand on the kerb next to the door.
func (c Cabin) DoorOutside() mgl64.Vec3 {
	wall := c.Center.X() + c.Width*0.5
	return mgl64.Vec3{wall + 0.55, c.walkHeight(), c.doorZ()}
}

// DoorThreshold sits just inside the wall so paths never cross solid geometry.
func (c Cabin) DoorThreshold() mgl64.Vec3 {
	wall := c.Center.X() + c.Width*0.5
	return mgl64.Vec3{wall - 0.05, c.walkHeight(), c.doorZ()}
}

// InsideSeat is the canonical position of every seated actor.
func (c Cabin) InsideSeat() mgl64.Vec3 {
	return mgl64.Vec3{c.Center.X() + 0.20, c.walkHeight(), c.Center.Z() + c.Length*0.20}
}

func clamp01(x float64) float64 { return lo.Clamp(x, 0, 1) }

// smoothstep is 3t²-2t³ over a clamped t.
func smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

// pathPosition evaluates the eased transit path at t. With a midpoint each
// half of the path is eased on its own.
func pathPosition(start, mid, end mgl64.Vec3, useMid bool, t float64) mgl64.Vec3 {
	t01 := clamp01(t)
	if !useMid {
		return start.Add(end.Sub(start).Mul(smoothstep(t01)))
	}
	if t01 < 0.5 {
		return start.Add(mid.Sub(start).Mul(smoothstep(t01 / 0.5)))
	}
	return mid.Add(end.Sub(mid).Mul(smoothstep((t01 - 0.5) / 0.5)))
}
