package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/verticore/liftd/core/persistence"
)

func unixTime(ts int64) time.Time { return time.Unix(ts, 0).UTC() }

// SQLiteGateway mirrors unit state and audit events to a SQLite database.
type SQLiteGateway struct {
	db *sql.DB
}

// NewSQLiteGateway opens or creates the database at path and ensures schema.
func NewSQLiteGateway(path string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS elevators (
        unit_id INTEGER PRIMARY KEY,
        current_floor INTEGER NOT NULL,
        state TEXT NOT NULL,
        direction TEXT NOT NULL,
        destination_floor INTEGER,
        trips_completed INTEGER NOT NULL,
        maintenance INTEGER NOT NULL,
        updated_at INTEGER NOT NULL
    );
    CREATE TABLE IF NOT EXISTS events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER NOT NULL,
        type TEXT NOT NULL,
        detail TEXT,
        source TEXT,
        unit_id INTEGER,
        severity TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteGateway{db: db}, nil
}

// UpsertUnitState writes or replaces the unit's durable row.
func (g *SQLiteGateway) UpsertUnitState(ctx context.Context, rec persistence.UnitRecord) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO elevators
            (unit_id, current_floor, state, direction, destination_floor, trips_completed, maintenance, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(unit_id) DO UPDATE SET
            current_floor=excluded.current_floor,
            state=excluded.state,
            direction=excluded.direction,
            destination_floor=excluded.destination_floor,
            trips_completed=excluded.trips_completed,
            maintenance=excluded.maintenance,
            updated_at=excluded.updated_at`,
		rec.UnitID, rec.CurrentFloor, rec.State, rec.Direction,
		rec.DestinationFloor, rec.TripsCompleted, rec.Maintenance, rec.UpdatedAt.Unix())
	return err
}

// AppendEvent appends one audit entry.
func (g *SQLiteGateway) AppendEvent(ctx context.Context, ev persistence.EventRecord) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO events (ts, type, detail, source, unit_id, severity) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.Unix(), ev.Type, ev.Detail, ev.Source, ev.UnitID, ev.Severity)
	return err
}

// Units returns all durable unit rows ordered by unit id.
func (g *SQLiteGateway) Units(ctx context.Context) ([]persistence.UnitRecord, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT unit_id, current_floor, state, direction, destination_floor, trips_completed, maintenance, updated_at
         FROM elevators ORDER BY unit_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []persistence.UnitRecord
	for rows.Next() {
		var rec persistence.UnitRecord
		var dest sql.NullInt64
		var ts int64
		if err := rows.Scan(&rec.UnitID, &rec.CurrentFloor, &rec.State, &rec.Direction,
			&dest, &rec.TripsCompleted, &rec.Maintenance, &ts); err != nil {
			return nil, err
		}
		if dest.Valid {
			d := int(dest.Int64)
			rec.DestinationFloor = &d
		}
		rec.UpdatedAt = unixTime(ts)
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Events returns audit entries, newest first. An empty eventType matches
// all types; limit <= 0 returns everything.
func (g *SQLiteGateway) Events(ctx context.Context, eventType string, limit int) ([]persistence.EventRecord, error) {
	var args []any
	query := `SELECT ts, type, detail, source, unit_id, severity FROM events WHERE 1=1`
	if eventType != "" {
		query += ` AND type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []persistence.EventRecord
	for rows.Next() {
		var ev persistence.EventRecord
		var unit sql.NullInt64
		var ts int64
		if err := rows.Scan(&ts, &ev.Type, &ev.Detail, &ev.Source, &unit, &ev.Severity); err != nil {
			return nil, err
		}
		if unit.Valid {
			u := int(unit.Int64)
			ev.UnitID = &u
		}
		ev.Timestamp = unixTime(ts)
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (g *SQLiteGateway) Close() error { return g.db.Close() }
