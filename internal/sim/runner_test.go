package sim

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bus-simulator/internal/bus"
	"bus-simulator/internal/hud"
	"bus-simulator/internal/metrics"
	"bus-simulator/internal/publisher"
	"bus-simulator/internal/route"
)

type fakePublisher struct {
	mu     sync.Mutex
	states []publisher.StateMessage
	events []bus.Event
}

func (f *fakePublisher) PublishState(msg publisher.StateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, msg)
	return nil
}

func (f *fakePublisher) PublishEvent(_ string, ev bus.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Kind()
	}
	return out
}

type fakeJournal struct{ events []bus.Event }

func (f *fakeJournal) Record(ev bus.Event) bool {
	f.events = append(f.events, ev)
	return true
}

func newTestRunner(opts Options, m *metrics.Collector) (*Runner, *fakePublisher, *fakeJournal) {
	rt := route.Default()
	s := bus.NewSimulation(rt, bus.DefaultTunables(), rand.New(rand.NewSource(7)), 0)
	pub := &fakePublisher{}
	j := &fakeJournal{}
	return NewRunner(s, hud.NewModel(rt, hud.DefaultPanel()), pub, j, m, opts), pub, j
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in   string
		want Intent
		err  bool
	}{
		{"board", IntentBoard, false},
		{" Alight ", IntentAlight, false},
		{"inspector", IntentInspector, false},
		{"reset", IntentReset, false},
		{"jump", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseIntent(tc.in)
		if (err != nil) != tc.err || got != tc.want {
			t.Errorf("ParseIntent(%q) = %v, %v", tc.in, got, err)
		}
	}
	for i, name := range IntentNames {
		if Intent(i).String() != name {
			t.Errorf("Intent(%d).String() = %q", i, Intent(i).String())
		}
	}
}

func TestRunnerStepScalesTime(t *testing.T) {
	r, pub, j := newTestRunner(Options{SpeedMultiplier: 22}, nil)
	r.step(500 * time.Millisecond)

	if math.Abs(r.simNow-11) > 1e-9 {
		t.Fatalf("simNow = %v, want 11", r.simNow)
	}
	st := r.sim.State()
	if st.AtStop || st.Door != bus.DoorClosed {
		t.Fatalf("bus still parked after the dwell: %+v", st)
	}
	if st.TravelFraction <= 0 {
		t.Errorf("travel fraction = %v", st.TravelFraction)
	}
	kinds := pub.kinds()
	if len(kinds) != 1 || kinds[0] != "depart" {
		t.Errorf("published events = %v", kinds)
	}
	if len(j.events) != 1 {
		t.Errorf("journaled %d events", len(j.events))
	}
	if r.view.DoorOpen || r.view.SteeringDeg == 0 {
		t.Errorf("hud view not updated: %+v", r.view)
	}
}

func TestRunnerSubmit(t *testing.T) {
	m := metrics.NewCollector(1, time.Millisecond, 10*time.Millisecond)
	r, pub, _ := newTestRunner(Options{RunID: "test", FrameInterval: time.Millisecond, PublishInterval: 10 * time.Millisecond}, m)
	r.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, err := r.Submit(ctx, IntentBoard)
	if err != nil || !ok {
		t.Fatalf("board = %v, %v", ok, err)
	}
	ok, err = r.Submit(ctx, IntentBoard)
	if err != nil || ok {
		t.Fatalf("second board while door busy = %v, %v", ok, err)
	}
	ok, err = r.Submit(ctx, IntentReset)
	if err != nil || !ok {
		t.Fatalf("reset = %v, %v", ok, err)
	}
	r.Stop()

	if _, err := r.Submit(ctx, IntentAlight); !errors.Is(err, ErrStopped) {
		t.Errorf("submit after stop: %v", err)
	}
	if st := r.sim.State(); st.PassengerCount != 0 || r.sim.HasMovingActor() {
		t.Errorf("state after reset = %+v", st)
	}

	kinds := pub.kinds()
	if len(kinds) == 0 || kinds[0] != "board" {
		t.Errorf("events = %v", kinds)
	}
	pub.mu.Lock()
	nStates := len(pub.states)
	runID := ""
	if nStates > 0 {
		runID = pub.states[0].RunID
	}
	pub.mu.Unlock()
	if nStates < 2 || runID != "test" {
		t.Errorf("published %d states, run id %q", nStates, runID)
	}

	if got := testutil.ToFloat64(m.Intents.WithLabelValues("board", "accepted")); got != 1 {
		t.Errorf("accepted boards = %v", got)
	}
	if got := testutil.ToFloat64(m.Intents.WithLabelValues("board", "rejected")); got != 1 {
		t.Errorf("rejected boards = %v", got)
	}
}

func TestRunnerSubmitHonorsContext(t *testing.T) {
	r, _, _ := newTestRunner(Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Submit(ctx, IntentBoard); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPublishStateIncludesMover(t *testing.T) {
	r, pub, _ := newTestRunner(Options{}, nil)
	if !r.apply(IntentBoard) {
		t.Fatal("board rejected")
	}
	r.publishState(time.Now())
	msg := pub.states[len(pub.states)-1]
	if msg.Moving == nil || msg.Moving.Phase != bus.Entering {
		t.Fatalf("moving = %+v", msg.Moving)
	}
	if msg.State.PassengerCount != 1 || msg.HUD.Passengers.Value != 1 {
		t.Errorf("count %d, hud %d", msg.State.PassengerCount, msg.HUD.Passengers.Value)
	}
}
