package db

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bus-simulator/internal/route"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// RoutePoint is one row of route_points.
type RoutePoint struct {
	Seq    int
	X, Y   float64 // normalized map coordinates in [-1,1]
	IsStop bool
}

// FetchRoute loads the named loop from route_points, ordered by seq.
func FetchRoute(ctx context.Context, db *sql.DB, name string, scale float64) (*route.Table, error) {
	q := `SELECT seq, x, y, is_stop FROM route_points WHERE route_name = $1 ORDER BY seq`
	rows, err := db.QueryContext(ctx, q, name)
	if err != nil {
		return nil, fmt.Errorf("query route_points: %w", err)
	}
	defer rows.Close()

	var pts []RoutePoint
	for rows.Next() {
		var p RoutePoint
		if err := rows.Scan(&p.Seq, &p.X, &p.Y, &p.IsStop); err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("route %q has no points", name)
	}
	t, err := buildRoute(pts, scale)
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", name, err)
	}
	return t, nil
}

func buildRoute(pts []RoutePoint, scale float64) (*route.Table, error) {
	pts = slices.Clone(pts)
	slices.SortFunc(pts, func(a, b RoutePoint) int { return a.Seq - b.Seq })

	mapPts := make([]mgl64.Vec2, len(pts))
	var stops []int
	for i, p := range pts {
		if i > 0 && pts[i-1].Seq == p.Seq {
			return nil, fmt.Errorf("duplicate seq %d", p.Seq)
		}
		if p.X < -1 || p.X > 1 || p.Y < -1 || p.Y > 1 {
			return nil, fmt.Errorf("point seq %d outside [-1,1]: (%v, %v)", p.Seq, p.X, p.Y)
		}
		mapPts[i] = mgl64.Vec2{p.X, p.Y}
		if p.IsStop {
			stops = append(stops, i)
		}
	}
	return route.New(mapPts, stops, scale)
}
