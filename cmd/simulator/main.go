package main

import (
	"context"
	"database/sql"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"bus-simulator/internal/bus"
	"bus-simulator/internal/config"
	"bus-simulator/internal/db"
	"bus-simulator/internal/hud"
	"bus-simulator/internal/metrics"
	"bus-simulator/internal/publisher"
	"bus-simulator/internal/route"
	"bus-simulator/internal/sim"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.New()
	log.Printf("run %s seed=%d speed=%.2fx fines=%s", runID, cfg.Seed, cfg.SpeedMultiplier, cfg.Tunables.Fines)

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.SpeedMultiplier, cfg.FrameInterval, cfg.PublishInterval)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Optional database: route table and run journal
	rt, err := route.Scaled(cfg.RouteScale)
	if err != nil {
		log.Fatalf("route error: %v", err)
	}
	var journal *db.Journal
	if cfg.DatabaseURL != "" {
		sqlDB := openDB(ctx, cfg.DatabaseURL)
		defer sqlDB.Close()

		if loaded, err := db.FetchRoute(ctx, sqlDB, cfg.RouteName, cfg.RouteScale); err != nil {
			log.Printf("route %q unavailable, using built-in loop: %v", cfg.RouteName, err)
		} else {
			rt = loaded
			log.Printf("loaded route %q: %d points, %d stops", cfg.RouteName, rt.Len(), len(rt.Stops()))
		}

		journal = db.NewJournal(sqlDB, runID, 256, journalDropHook(mcol))
		if err := journal.StartRun(ctx, cfg.RouteName, cfg.Seed, cfg.Tunables); err != nil {
			log.Fatalf("journal error: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := journal.Close(closeCtx); err != nil {
				log.Printf("journal close: %v", err)
			}
		}()
	}

	// Initialize NATS publisher
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, "bus-simulator-"+runID.String(), cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer pub.Close()

	rng := rand.New(rand.NewSource(cfg.Seed))
	s := bus.NewSimulation(rt, cfg.Tunables, rng, 0)
	runner := sim.NewRunner(s, hud.NewModel(rt, hud.DefaultPanel()), pub, recorder(journal), mcol, sim.Options{
		RunID:           runID.String(),
		FrameInterval:   cfg.FrameInterval,
		PublishInterval: cfg.PublishInterval,
		SpeedMultiplier: cfg.SpeedMultiplier,
	})
	runner.Start(ctx)

	err = pub.SubscribeIntents(sim.IntentNames, 2*time.Second, func(ctx context.Context, name string) (bool, error) {
		in, err := sim.ParseIntent(name)
		if err != nil {
			return false, err
		}
		return runner.Submit(ctx, in)
	})
	if err != nil {
		log.Fatalf("nats subscribe error: %v", err)
	}

	// Block until context cancelled
	<-ctx.Done()
	runner.Stop()
	log.Println("shutdown complete")
}

func openDB(ctx context.Context, dsn string) *sql.DB {
	sqlDB, err := db.Open(dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	if err := db.EnsureSchema(ctx, sqlDB); err != nil {
		log.Fatalf("db schema error: %v", err)
	}
	return sqlDB
}

// recorder keeps a nil *db.Journal from becoming a non-nil interface.
func recorder(j *db.Journal) sim.EventRecorder {
	if j == nil {
		return nil
	}
	return j
}

func journalDropHook(c *metrics.Collector) func() {
	if c == nil {
		return nil
	}
	return c.JournalDrops.Inc
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
