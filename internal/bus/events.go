package bus

// Event is a marker for everything the simulation reports to its host. Events
// queue up inside the Simulation until DrainEvents is called.
type Event interface {
	isEvent()
	// Kind is a short stable name, usable as a subject token.
	Kind() string
}

// DepartEvent fires when the dwell ends and the bus pulls away.
type DepartEvent struct {
	Time       float64 `json:"time"`
	RouteIndex int     `json:"routeIndex"`
	StopNumber int     `json:"stopNumber"`
	Passengers int     `json:"passengers"`
}

func (DepartEvent) isEvent()     {}
func (DepartEvent) Kind() string { return "depart" }

// ArriveEvent fires when the bus halts at a stop, before any inspection.
type ArriveEvent struct {
	Time       float64 `json:"time"`
	RouteIndex int     `json:"routeIndex"`
	StopNumber int     `json:"stopNumber"`
	Passengers int     `json:"passengers"`
}

func (ArriveEvent) isEvent()     {}
func (ArriveEvent) Kind() string { return "arrive" }

// InspectionEvent records the inspector leaving and the fines issued.
type InspectionEvent struct {
	Time       float64 `json:"time"`
	RouteIndex int     `json:"routeIndex"`
	StopNumber int     `json:"stopNumber"`
	Checked    int     `json:"checked"`
	Fines      int     `json:"fines"`
	TotalFines int     `json:"totalFines"`
	// Animated is false when another actor occupied the door; the walk-out
	// then starts once the door frees up.
	Animated bool `json:"animated"`
}

func (InspectionEvent) isEvent()     {}
func (InspectionEvent) Kind() string { return "inspection" }

// BoardEvent is an accepted boarding intent.
type BoardEvent struct {
	Time       float64   `json:"time"`
	ActorID    int       `json:"actorId"`
	ActorKind  ActorKind `json:"actorKind"`
	Passengers int       `json:"passengers"`
}

func (BoardEvent) isEvent()     {}
func (BoardEvent) Kind() string { return "board" }

// AlightEvent is an accepted alighting intent.
type AlightEvent struct {
	Time       float64   `json:"time"`
	ActorID    int       `json:"actorId"`
	ActorKind  ActorKind `json:"actorKind"`
	Passengers int       `json:"passengers"`
}

func (AlightEvent) isEvent()     {}
func (AlightEvent) Kind() string { return "alight" }

// TransitDoneEvent fires when an actor finishes walking through the door.
type TransitDoneEvent struct {
	Time      float64   `json:"time"`
	ActorID   int       `json:"actorId"`
	ActorKind ActorKind `json:"actorKind"`
	// Phase is Inside for a completed entry and Exiting for a completed exit.
	Phase Phase `json:"phase"`
}

func (TransitDoneEvent) isEvent()     {}
func (TransitDoneEvent) Kind() string { return "transit" }
