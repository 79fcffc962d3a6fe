// Package store persists reconstruction sessions in SQLite so that path
// queries can run against an elevation grid produced by an earlier call.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lunarterrain/internal/models"
	"lunarterrain/pkg/gridio"
)

// ErrSessionNotFound is returned when no session has the requested id, which
// includes asking for elevation data before any reconstruction was stored.
var ErrSessionNotFound = errors.New("store: no elevation data for session")

// Session is one stored reconstruction
type Session struct {
	ID     string
	Source string

	Width  int
	Height int

	// Exaggeration is the scale applied to the normalized surface
	Exaggeration float64
	ImagResidue  float64

	// Elevation is empty for sessions returned by ListSessions
	Elevation models.Grid
	Zones     []models.LandingZone
	Stats     models.TerrainStats

	CreatedAt time.Time
}

// PathQuery records one planner request against a session
type PathQuery struct {
	ID        int64
	SessionID string
	Start     models.Point
	Goal      models.Point
	MaxSlope  float64
	Found     bool
	Cost      float64
	Path      models.Path
	CreatedAt time.Time
}

// Store wraps the SQLite handle
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps per-connection pragmas in force.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession inserts sess. An empty ID is replaced by a new UUID and a zero
// CreatedAt by the current time; both are written back into sess.
func (s *Store) SaveSession(ctx context.Context, sess *Session) error {
	if sess.Elevation.Empty() {
		return errors.New("store: session has no elevation grid")
	}
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sess.Width, sess.Height = sess.Elevation.Width, sess.Elevation.Height

	npy, err := gridio.Marshal(sess.Elevation)
	if err != nil {
		return fmt.Errorf("encode elevation: %w", err)
	}
	zones := sess.Zones
	if zones == nil {
		zones = []models.LandingZone{}
	}
	zonesJSON, err := json.Marshal(zones)
	if err != nil {
		return fmt.Errorf("encode zones: %w", err)
	}
	statsJSON, err := json.Marshal(sess.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, source, width, height, exaggeration, imag_residue,
			elevation_npy, zones_json, stats_json, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Source, sess.Width, sess.Height, sess.Exaggeration, sess.ImagResidue,
		npy, string(zonesJSON), string(statsJSON), sess.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// LoadSession returns the full session including its elevation grid.
func (s *Store) LoadSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess                 Session
		npy                  []byte
		zonesJSON, statsJSON string
		createdNs            int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, source, width, height, exaggeration, imag_residue,
		       elevation_npy, zones_json, stats_json, created_at_ns
		FROM sessions WHERE session_id = ?`, id,
	).Scan(&sess.ID, &sess.Source, &sess.Width, &sess.Height, &sess.Exaggeration, &sess.ImagResidue,
		&npy, &zonesJSON, &statsJSON, &createdNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.Elevation, err = gridio.Unmarshal(npy); err != nil {
		return nil, fmt.Errorf("decode elevation for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(zonesJSON), &sess.Zones); err != nil {
		return nil, fmt.Errorf("decode zones for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &sess.Stats); err != nil {
		return nil, fmt.Errorf("decode stats for %s: %w", id, err)
	}
	sess.CreatedAt = time.Unix(0, createdNs)

	return &sess, nil
}

// LoadElevation returns only the stored elevation grid.
func (s *Store) LoadElevation(ctx context.Context, id string) (models.Grid, error) {
	var npy []byte
	err := s.db.QueryRowContext(ctx, `SELECT elevation_npy FROM sessions WHERE session_id = ?`, id).Scan(&npy)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Grid{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return models.Grid{}, fmt.Errorf("get elevation: %w", err)
	}
	return gridio.Unmarshal(npy)
}

// ListSessions returns session metadata, newest first, without elevation
// grids, zones or stats.
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, source, width, height, exaggeration, imag_residue, created_at_ns
		FROM sessions ORDER BY created_at_ns DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var sess Session
		var createdNs int64
		if err := rows.Scan(&sess.ID, &sess.Source, &sess.Width, &sess.Height,
			&sess.Exaggeration, &sess.ImagResidue, &createdNs); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = time.Unix(0, createdNs)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its path queries.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// SavePathQuery records q and sets its ID. The session must exist.
func (s *Store) SavePathQuery(ctx context.Context, q *PathQuery) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	path := q.Path
	if path == nil {
		path = models.Path{}
	}
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("encode path: %w", err)
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE session_id = ?`, q.SessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, q.SessionID)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO path_queries (
			session_id, start_x, start_y, goal_x, goal_y, max_slope,
			found, cost, path_json, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.SessionID, q.Start.X, q.Start.Y, q.Goal.X, q.Goal.Y, q.MaxSlope,
		q.Found, q.Cost, string(pathJSON), q.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert path query: %w", err)
	}
	q.ID, err = res.LastInsertId()
	return err
}

// ListPathQueries returns the queries recorded for a session in insertion order.
func (s *Store) ListPathQueries(ctx context.Context, sessionID string) ([]*PathQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_id, session_id, start_x, start_y, goal_x, goal_y, max_slope,
		       found, cost, path_json, created_at_ns
		FROM path_queries WHERE session_id = ? ORDER BY query_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list path queries: %w", err)
	}
	defer rows.Close()

	var out []*PathQuery
	for rows.Next() {
		var (
			q         PathQuery
			pathJSON  string
			createdNs int64
		)
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Start.X, &q.Start.Y, &q.Goal.X, &q.Goal.Y,
			&q.MaxSlope, &q.Found, &q.Cost, &pathJSON, &createdNs); err != nil {
			return nil, fmt.Errorf("scan path query: %w", err)
		}
		if err := json.Unmarshal([]byte(pathJSON), &q.Path); err != nil {
			return nil, fmt.Errorf("decode path %d: %w", q.ID, err)
		}
		q.CreatedAt = time.Unix(0, createdNs)
		out = append(out, &q)
	}
	return out, rows.Err()
}
