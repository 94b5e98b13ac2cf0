package db

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"bus-simulator/internal/bus"
)

func TestBuildRoute(t *testing.T) {
	pts := []RoutePoint{
		{Seq: 30, X: 0.5, Y: 0.5, IsStop: true},
		{Seq: 10, X: -0.5, Y: -0.5, IsStop: true},
		{Seq: 20, X: 0.5, Y: -0.5},
	}
	rt, err := buildRoute(pts, 2)
	if err != nil {
		t.Fatalf("buildRoute: %v", err)
	}
	if rt.Len() != 3 {
		t.Fatalf("Len = %d", rt.Len())
	}
	if got := rt.MapPoint(0); got != (mgl64.Vec2{-0.5, -0.5}) {
		t.Errorf("first point = %v, want lowest seq", got)
	}
	if got := rt.PointAt(2); !got.ApproxEqual(mgl64.Vec3{1, 0, 1}) {
		t.Errorf("scaled point = %v", got)
	}
	if !rt.IsStop(0) || rt.IsStop(1) || !rt.IsStop(2) {
		t.Errorf("stops = %v", rt.Stops())
	}
	if pts[0].Seq != 30 {
		t.Error("input slice reordered")
	}
}

func TestBuildRouteErrors(t *testing.T) {
	tests := []struct {
		name string
		pts  []RoutePoint
		want string
	}{
		{"duplicate seq", []RoutePoint{{Seq: 1}, {Seq: 1, X: 0.2}}, "duplicate seq 1"},
		{"out of range", []RoutePoint{{Seq: 1}, {Seq: 2, X: 1.5}}, "outside"},
		{"single point", []RoutePoint{{Seq: 1}}, "at least two"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildRoute(tc.pts, 1)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestStatementFor(t *testing.T) {
	run := uuid.New()
	tests := []struct {
		ev    bus.Event
		table string
		kind  any
	}{
		{bus.ArriveEvent{Time: 1, StopNumber: 2}, "stop_visits", "arrive"},
		{bus.DepartEvent{Time: 2}, "stop_visits", "depart"},
		{bus.BoardEvent{ActorKind: bus.Inspector}, "transfers", "board"},
		{bus.AlightEvent{}, "transfers", "alight"},
		{bus.InspectionEvent{Fines: 3}, "inspections", nil},
	}
	for _, tc := range tests {
		q, args, ok := statementFor(run, tc.ev)
		if !ok {
			t.Errorf("%T not journaled", tc.ev)
			continue
		}
		if !strings.Contains(q, "INSERT INTO "+tc.table) {
			t.Errorf("%T -> %q", tc.ev, q)
		}
		if args[0] != run {
			t.Errorf("%T first arg = %v", tc.ev, args[0])
		}
		if n := strings.Count(q, "$"); n != len(args) {
			t.Errorf("%T has %d placeholders for %d args", tc.ev, n, len(args))
		}
		if tc.kind != nil && args[2] != tc.kind {
			t.Errorf("%T kind = %v, want %v", tc.ev, args[2], tc.kind)
		}
	}

	if _, _, ok := statementFor(run, bus.TransitDoneEvent{}); ok {
		t.Error("transit completions should not be journaled")
	}
}

func TestJournalRecordDropsWhenFull(t *testing.T) {
	drops := 0
	j := NewJournal(nil, uuid.New(), 1, func() { drops++ })
	if !j.Record(bus.ArriveEvent{}) {
		t.Fatal("first record rejected")
	}
	if j.Record(bus.DepartEvent{}) {
		t.Fatal("record into a full queue accepted")
	}
	if drops != 1 {
		t.Errorf("drops = %d", drops)
	}
}
