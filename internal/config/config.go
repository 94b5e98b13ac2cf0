package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bus-simulator/internal/bus"
	"bus-simulator/internal/route"
)

type Config struct {
	DatabaseURL string // empty disables the journal and the DB route
	RouteName   string
	RouteScale  float64

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	MetricsAddr       string

	FrameInterval   time.Duration
	PublishInterval time.Duration
	SpeedMultiplier float64
	Seed            int64

	Tunables bus.Tunables
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{Tunables: bus.DefaultTunables()}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars when PGDATABASE is set
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		}
	}
	cfg.DatabaseURL = dsn
	cfg.RouteName = getenvDefault("ROUTE_NAME", "default")

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "bus")
	if strings.ContainsAny(cfg.NATSSubjectPrefix, " \t*>") {
		return nil, fmt.Errorf("invalid NATS_SUBJECT_PREFIX: %q", cfg.NATSSubjectPrefix)
	}

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			cfg.LogNATSSubjects = true
		default:
			cfg.LogNATSSubjects = false
		}
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	var err error
	if cfg.FrameInterval, err = millis("FRAME_INTERVAL_MS", 13*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PublishInterval, err = millis("PUBLISH_INTERVAL_MS", 100*time.Millisecond); err != nil {
		return nil, err
	}

	// Speed multiplier
	if cfg.SpeedMultiplier, err = positiveFloat("SPEED_MULTIPLIER", 1.0); err != nil {
		return nil, err
	}

	// Seed; time-based unless pinned
	if v := os.Getenv("SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED: %q", v)
		}
		cfg.Seed = seed
	} else {
		cfg.Seed = time.Now().UnixNano()
	}

	if cfg.RouteScale, err = positiveFloat("ROUTE_SCALE", route.DefaultScale); err != nil {
		return nil, err
	}

	t := &cfg.Tunables
	if t.StopDwell, err = positiveFloat("STOP_DWELL_SECONDS", t.StopDwell); err != nil {
		return nil, err
	}
	if t.WorldSpeed, err = positiveFloat("WORLD_SPEED", t.WorldSpeed); err != nil {
		return nil, err
	}
	if t.PassengerMoveTime, err = positiveFloat("PASSENGER_MOVE_SECONDS", t.PassengerMoveTime); err != nil {
		return nil, err
	}
	if t.InspectorMoveTime, err = positiveFloat("INSPECTOR_MOVE_SECONDS", t.InspectorMoveTime); err != nil {
		return nil, err
	}

	// Parametric speed: 0 keeps the segment-length based travel
	if v := os.Getenv("PARAMETRIC_SPEED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid PARAMETRIC_SPEED: %q", v)
		}
		t.ParametricSpeed = f
	}

	if v := os.Getenv("CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CAPACITY: %q", v)
		}
		t.Capacity = n
	}

	if v := os.Getenv("FINE_POLICY"); v != "" {
		p, err := bus.ParseFinePolicy(v)
		if err != nil {
			return nil, fmt.Errorf("invalid FINE_POLICY: %q", v)
		}
		t.Fines = p
	}

	return cfg, nil
}

func millis(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func positiveFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !(f > 0) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
