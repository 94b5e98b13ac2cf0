package bus

import "github.com/samber/lo"

// choreography owns the seated actors and the single transit slot.
type choreography struct {
	cabin         Cabin
	skins         int
	passengerMove float64
	inspectorMove float64

	nextID int
	seated []Actor // arrival order
	moving Actor
	active bool
}

func newChoreography(t Tunables) choreography {
	skins := t.SkinCount
	if skins <= 0 {
		skins = 1
	}
	return choreography{
		cabin:         t.Cabin,
		skins:         skins,
		passengerMove: t.PassengerMoveTime,
		inspectorMove: t.InspectorMoveTime,
		nextID:        1,
	}
}

func (c *choreography) reset() {
	c.nextID = 1
	c.seated = nil
	c.moving = Actor{}
	c.active = false
}

func (c *choreography) duration(k ActorKind) float64 {
	if k == Inspector {
		return c.inspectorMove
	}
	return c.passengerMove
}

// spawnEnter puts a new actor on the kerb-to-seat path. It is a no-op when
// another actor is already walking.
func (c *choreography) spawnEnter(kind ActorKind) (Actor, bool) {
	if c.active {
		return Actor{}, false
	}
	a := Actor{
		ID:          c.nextID,
		Kind:        kind,
		Phase:       Entering,
		Start:       c.cabin.DoorOutside(),
		Mid:         c.cabin.DoorThreshold(),
		End:         c.cabin.InsideSeat(),
		UseMidpoint: true,
		Duration:    c.duration(kind),
	}
	c.nextID++
	if kind == Passenger {
		a.Skin = (a.ID - 1) % c.skins
	}
	a.Pos = a.Start
	c.moving = a
	c.active = true
	return a, true
}

// spawnExit takes an actor out of its seat and walks it to the kerb.
func (c *choreography) spawnExit() (Actor, bool) {
	if c.active {
		return Actor{}, false
	}
	a, ok := c.takeSeated()
	if !ok {
		return Actor{}, false
	}
	a.Phase = Exiting
	a.Start = c.cabin.InsideSeat()
	a.Mid = c.cabin.DoorThreshold()
	a.End = c.cabin.DoorOutside()
	a.UseMidpoint = true
	a.Pos = a.Start
	a.T = 0
	a.Duration = c.duration(a.Kind)
	c.moving = a
	c.active = true
	return a, true
}

// takeSeated removes the inspector if seated, else the earliest arrival.
func (c *choreography) takeSeated() (Actor, bool) {
	if len(c.seated) == 0 {
		return Actor{}, false
	}
	a, idx, found := lo.FindIndexOf(c.seated, func(a Actor) bool { return a.Kind == Inspector })
	if !found {
		a, idx = c.seated[0], 0
	}
	c.seated = append(c.seated[:idx:idx], c.seated[idx+1:]...)
	return a, true
}

// tick moves the walking actor. When the walk completes the finished actor
// is returned with done set.
func (c *choreography) tick(dt float64) (finished Actor, done bool) {
	if !c.active {
		return Actor{}, false
	}
	m := &c.moving
	m.T += dt / max(minDuration, m.Duration)
	m.Pos = pathPosition(m.Start, m.Mid, m.End, m.UseMidpoint, m.T)
	if m.T < 1 {
		return Actor{}, false
	}

	finished = *m
	if m.Phase == Entering {
		m.Phase = Inside
		m.Pos = c.cabin.InsideSeat()
		finished = *m
		c.seated = append(c.seated, *m)
	}
	c.moving = Actor{}
	c.active = false
	return finished, true
}

func (c *choreography) seatedCopy() []Actor {
	out := make([]Actor, len(c.seated))
	copy(out, c.seated)
	return out
}

func (c *choreography) containsInspector() bool {
	return lo.ContainsBy(c.seated, func(a Actor) bool { return a.Kind == Inspector })
}
