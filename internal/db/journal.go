package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"bus-simulator/internal/bus"
)

const schema = `
CREATE TABLE IF NOT EXISTS route_points (
  route_name text NOT NULL,
  seq        integer NOT NULL,
  x          double precision NOT NULL,
  y          double precision NOT NULL,
  is_stop    boolean NOT NULL DEFAULT false,
  PRIMARY KEY (route_name, seq)
);
CREATE TABLE IF NOT EXISTS runs (
  run_id     uuid PRIMARY KEY,
  route_name text NOT NULL,
  seed       bigint NOT NULL,
  tunables   jsonb,
  started_at timestamptz NOT NULL,
  ended_at   timestamptz
);
CREATE TABLE IF NOT EXISTS stop_visits (
  run_id      uuid NOT NULL REFERENCES runs(run_id),
  sim_time    double precision NOT NULL,
  kind        text NOT NULL,
  route_index integer NOT NULL,
  stop_number integer NOT NULL,
  passengers  integer NOT NULL
);
CREATE TABLE IF NOT EXISTS inspections (
  run_id      uuid NOT NULL REFERENCES runs(run_id),
  sim_time    double precision NOT NULL,
  route_index integer NOT NULL,
  stop_number integer NOT NULL,
  checked     integer NOT NULL,
  fines       integer NOT NULL,
  total_fines integer NOT NULL,
  animated    boolean NOT NULL
);
CREATE TABLE IF NOT EXISTS transfers (
  run_id     uuid NOT NULL REFERENCES runs(run_id),
  sim_time   double precision NOT NULL,
  kind       text NOT NULL,
  actor_id   integer NOT NULL,
  actor_kind text NOT NULL,
  passengers integer NOT NULL
);`

// EnsureSchema creates the route and journal tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Journal writes simulation events to Postgres from a background goroutine.
// Record never blocks; events are dropped when the queue is full.
type Journal struct {
	db     *sql.DB
	runID  uuid.UUID
	ch     chan bus.Event
	onDrop func()

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewJournal(db *sql.DB, runID uuid.UUID, buffer int, onDrop func()) *Journal {
	return &Journal{db: db, runID: runID, ch: make(chan bus.Event, buffer), onDrop: onDrop}
}

func (j *Journal) RunID() uuid.UUID { return j.runID }

// StartRun inserts the runs row and starts the writer.
func (j *Journal) StartRun(ctx context.Context, routeName string, seed int64, tun bus.Tunables) error {
	b, err := json.Marshal(tun)
	if err != nil {
		return err
	}
	q := `INSERT INTO runs (run_id, route_name, seed, tunables, started_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := j.db.ExecContext(ctx, q, j.runID, routeName, seed, string(b), time.Now().UTC()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	j.wg.Add(1)
	go j.loop()
	return nil
}

func (j *Journal) Record(ev bus.Event) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false
	}
	select {
	case j.ch <- ev:
		return true
	default:
		if j.onDrop != nil {
			j.onDrop()
		}
		return false
	}
}

func (j *Journal) loop() {
	defer j.wg.Done()
	for ev := range j.ch {
		q, args, ok := statementFor(j.runID, ev)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := j.db.ExecContext(ctx, q, args...); err != nil {
			log.Printf("journal %s: %v", ev.Kind(), err)
		}
		cancel()
	}
}

// Close flushes queued events and stamps the run's end time.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
	q := `UPDATE runs SET ended_at = $2 WHERE run_id = $1`
	if _, err := j.db.ExecContext(ctx, q, j.runID, time.Now().UTC()); err != nil {
		return fmt.Errorf("close run: %w", err)
	}
	return nil
}

// statementFor maps an event to its insert. Door transit completions are not
// journaled.
func statementFor(runID uuid.UUID, ev bus.Event) (string, []any, bool) {
	switch e := ev.(type) {
	case bus.ArriveEvent:
		return insertStopVisit, []any{runID, e.Time, e.Kind(), e.RouteIndex, e.StopNumber, e.Passengers}, true
	case bus.DepartEvent:
		return insertStopVisit, []any{runID, e.Time, e.Kind(), e.RouteIndex, e.StopNumber, e.Passengers}, true
	case bus.InspectionEvent:
		return insertInspection, []any{runID, e.Time, e.RouteIndex, e.StopNumber, e.Checked, e.Fines, e.TotalFines, e.Animated}, true
	case bus.BoardEvent:
		return insertTransfer, []any{runID, e.Time, e.Kind(), e.ActorID, e.ActorKind.String(), e.Passengers}, true
	case bus.AlightEvent:
		return insertTransfer, []any{runID, e.Time, e.Kind(), e.ActorID, e.ActorKind.String(), e.Passengers}, true
	}
	return "", nil, false
}

const (
	insertStopVisit = `INSERT INTO stop_visits (run_id, sim_time, kind, route_index, stop_number, passengers)
VALUES ($1, $2, $3, $4, $5, $6)`
	insertInspection = `INSERT INTO inspections (run_id, sim_time, route_index, stop_number, checked, fines, total_fines, animated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	insertTransfer = `INSERT INTO transfers (run_id, sim_time, kind, actor_id, actor_kind, passengers)
VALUES ($1, $2, $3, $4, $5, $6)`
)
