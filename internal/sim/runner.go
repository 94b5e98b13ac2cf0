package sim

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"bus-simulator/internal/bus"
	"bus-simulator/internal/hud"
	mmetrics "bus-simulator/internal/metrics"
	"bus-simulator/internal/publisher"
)

// maxStep bounds a single Advance so a stalled ticker cannot skip a stop's
// dwell in one jump.
const maxStep = 0.05

var ErrStopped = errors.New("runner stopped")

type StatePublisher interface {
	PublishState(msg publisher.StateMessage) error
	PublishEvent(runID string, ev bus.Event) error
}

type EventRecorder interface {
	Record(ev bus.Event) bool
}

type Options struct {
	RunID           string
	FrameInterval   time.Duration
	PublishInterval time.Duration
	SpeedMultiplier float64
}

// Runner owns a Simulation and drives it from a wall-clock ticker. Intents
// arrive through Submit and are applied on the runner goroutine between
// frames, so the Simulation itself never sees concurrent calls.
type Runner struct {
	sim     *bus.Simulation
	hud     *hud.Model
	pub     StatePublisher
	journal EventRecorder
	metrics *mmetrics.Collector
	opts    Options

	requests chan request
	done     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	simNow      float64
	view        hud.View
	lastPublish time.Time
}

type request struct {
	intent Intent
	reply  chan bool
}

// NewRunner wires a simulation to its outputs. pub, journal and metrics may be nil.
func NewRunner(s *bus.Simulation, h *hud.Model, pub StatePublisher, journal EventRecorder, metrics *mmetrics.Collector, opts Options) *Runner {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 13 * time.Millisecond
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = 100 * time.Millisecond
	}
	if opts.SpeedMultiplier <= 0 {
		opts.SpeedMultiplier = 1
	}
	r := &Runner{
		sim:      s,
		hud:      h,
		pub:      pub,
		journal:  journal,
		metrics:  metrics,
		opts:     opts,
		requests: make(chan request),
		done:     make(chan struct{}),
		simNow:   s.State().Clock,
	}
	r.view = h.Update(s.State(), 0)
	return r
}

func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop cancels the loop and waits for it to flush.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Submit hands an intent to the runner and waits for the simulation's answer.
func (r *Runner) Submit(ctx context.Context, in Intent) (bool, error) {
	req := request{intent: in, reply: make(chan bool, 1)}
	select {
	case r.requests <- req:
	case <-r.done:
		return false, ErrStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.done)

	tick := time.NewTicker(r.opts.FrameInterval)
	defer tick.Stop()

	last := time.Now()
	r.publishState(last)
	log.Printf("run %s started at stop %d", r.opts.RunID, r.sim.State().StopNumber)

	for {
		select {
		case <-ctx.Done():
			r.flushEvents()
			r.publishState(time.Now())
			log.Printf("run %s stopped at sim time %.1fs", r.opts.RunID, r.simNow)
			return
		case req := <-r.requests:
			req.reply <- r.apply(req.intent)
			r.flushEvents()
		case now := <-tick.C:
			r.step(now.Sub(last))
			last = now
			if now.Sub(r.lastPublish) >= r.opts.PublishInterval {
				r.publishState(now)
			}
		}
	}
}

// step advances simulated time by elapsed wall time scaled by the speed
// multiplier, in slices no longer than maxStep.
func (r *Runner) step(elapsed time.Duration) {
	start := time.Now()
	remaining := elapsed.Seconds() * r.opts.SpeedMultiplier
	for remaining > 0 {
		dt := min(remaining, maxStep)
		remaining -= dt
		r.simNow += dt
		r.sim.Advance(r.simNow, dt)
		r.view = r.hud.Update(r.sim.State(), dt)
	}
	r.flushEvents()
	if r.metrics != nil {
		r.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
}

func (r *Runner) apply(in Intent) bool {
	var ok bool
	switch in {
	case IntentBoard:
		ok = r.sim.RequestBoard()
	case IntentAlight:
		ok = r.sim.RequestAlight()
	case IntentInspector:
		ok = r.sim.RequestInspectorBoard()
	case IntentReset:
		r.sim.Reset(r.simNow)
		r.hud.Reset()
		ok = true
		log.Printf("run %s reset at sim time %.1fs", r.opts.RunID, r.simNow)
	}
	r.view = r.hud.Update(r.sim.State(), 0)
	if r.metrics != nil {
		r.metrics.ObserveIntent(in.String(), ok)
	}
	return ok
}

func (r *Runner) flushEvents() {
	for _, ev := range r.sim.DrainEvents() {
		if r.metrics != nil {
			r.metrics.ObserveEvent(ev)
		}
		if r.journal != nil {
			r.journal.Record(ev)
		}
		if r.pub != nil {
			if err := r.pub.PublishEvent(r.opts.RunID, ev); err != nil {
				log.Printf("publish %s event: %v", ev.Kind(), err)
			}
		}
		if e, ok := ev.(bus.InspectionEvent); ok {
			log.Printf("inspection at stop %d: checked %d, fined %d (total %d)", e.StopNumber, e.Checked, e.Fines, e.TotalFines)
		}
	}
}

func (r *Runner) publishState(now time.Time) {
	r.lastPublish = now
	st := r.sim.State()
	if r.metrics != nil {
		r.metrics.ObserveState(st)
	}
	if r.pub == nil {
		return
	}
	msg := publisher.StateMessage{
		RunID:     r.opts.RunID,
		Timestamp: now.UTC(),
		SimTime:   r.simNow,
		State:     st,
		Seated:    r.sim.Seated(),
		HUD:       r.view,
	}
	if a, ok := r.sim.Moving(); ok {
		msg.Moving = &a
	}
	if err := r.pub.PublishState(msg); err != nil {
		log.Printf("publish state: %v", err)
	}
}
