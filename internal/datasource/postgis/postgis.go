// Package postgis resolves trajectory points against a PostGIS database.
package postgis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/observability"
	"github.com/geosense/landtraj/internal/temporal"
)

// Executor runs one trajectory query and scans the first row. found is
// false when the query matches nothing.
type Executor interface {
	QueryTrajectory(ctx context.Context, query string) (class, date string, found bool, err error)
}

type sqlxExecutor struct {
	db *sqlx.DB
}

func (e sqlxExecutor) QueryTrajectory(ctx context.Context, query string) (string, string, bool, error) {
	var class, date string
	err := e.db.QueryRowxContext(ctx, query).Scan(&class, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("trajectory query: %v: %w", err, errs.ErrTransport)
	}
	return class, date, true, nil
}

// plan is the shape a (classification, temporal) pair selects. Pure data,
// computed once per query.
type plan struct {
	joined     bool
	quotedDate bool
}

func planFor(ck model.ClassificationKind, tk model.TemporalKind) plan {
	return plan{
		joined:     ck == model.ClassificationAttribute,
		quotedDate: tk == model.TemporalString,
	}
}

// BuildTrajectorySQL renders the single statement that resolves one
// trajectory point. Literal classifications bake the label into the
// projection; attribute classifications join the classification entity.
// String temporals quote the configured temporal value, typed temporals
// reference the column directly, and date bounds follow the same quoting
// rule as the date expression.
func BuildTrajectorySQL(q model.TrajectoryQuery, bounds temporal.Bounds) string {
	p := planFor(q.Classification.Kind, q.Temporal.Kind)

	var classExpr, dateExpr, from string
	var conds []string

	if p.joined {
		classExpr = fmt.Sprintf("class.%s AS class", q.Classification.ClassProperty)
		from = fmt.Sprintf("%s AS obs, %s AS class", q.Target, q.Classification.Entity)
		conds = append(conds, fmt.Sprintf("obs.%s = class.%s",
			q.Mapping.ClassProperty, q.Classification.EntityIDProperty))
	} else {
		classExpr = fmt.Sprintf("'%s' AS class", q.Classification.ClassProperty)
		from = fmt.Sprintf("%s AS obs", q.Target)
	}

	if p.quotedDate {
		dateExpr = fmt.Sprintf("'%s'", q.Mapping.TemporalProperty)
	} else {
		dateExpr = fmt.Sprintf("obs.%s", q.Mapping.TemporalProperty)
	}

	conds = append(conds, fmt.Sprintf("ST_Intersects(obs.%s, ST_GeomFromText('%s', %d))",
		q.Geometry.Name, q.Point.WKT(), q.Geometry.SRID))

	if bounds.Start != nil {
		conds = append(conds, fmt.Sprintf("%s >= '%s'", dateExpr, bounds.Start.Format("2006-01-02")))
	}
	if bounds.End != nil {
		conds = append(conds, fmt.Sprintf("%s <= '%s'", dateExpr, bounds.End.Format("2006-01-02")))
	}

	return fmt.Sprintf("SELECT %s, %s AS date FROM %s WHERE %s LIMIT 1",
		classExpr, dateExpr, from, strings.Join(conds, " AND "))
}

// Backend is one PostGIS datasource.
type Backend struct {
	id     string
	logger *slog.Logger
	exec   Executor
}

// New opens the database connection and verifies it. A failed connection
// is a configuration error, fatal at load time.
func New(id string, logger *slog.Logger, host string, port int, user, password, database string) (*Backend, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, database)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect datasource %s: %v: %w", id, err, errs.ErrConfiguration)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewWithExecutor(id, logger, sqlxExecutor{db: db}), nil
}

// NewWithExecutor wires an explicit executor; tests substitute fakes here.
func NewWithExecutor(id string, logger *slog.Logger, exec Executor) *Backend {
	return &Backend{id: id, logger: logger, exec: exec}
}

func (b *Backend) ID() string { return b.id }

// Trajectory resolves one point. The statement executes exactly once; zero
// rows mean no data, not an error.
func (b *Backend) Trajectory(ctx context.Context, q model.TrajectoryQuery) (*model.TrajectoryPoint, error) {
	bounds, err := temporal.ParseBounds(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	query := BuildTrajectorySQL(q, bounds)
	b.logger.LogAttrs(ctx, slog.LevelDebug, "trajectory query",
		slog.String("datasource", b.id),
		slog.String("sql", query),
	)

	start := time.Now()
	class, date, found, err := b.exec.QueryTrajectory(ctx, query)
	observability.ObserveUpstreamLatency("postgis", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &model.TrajectoryPoint{Class: class, Date: date}, nil
}
