// Package persistence provides SQLite-based storage for the terrain layer
// and world metadata.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexworld/internal/hex"
	"github.com/talgya/hexworld/internal/world"
)

// Metadata keys written by SaveWorldState.
const (
	MetaSeed   = "seed"
	MetaWidth  = "width"
	MetaHeight = "height"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Edit is one terrain change made through the API.
type Edit struct {
	ID      int64     `db:"id" json:"id"`
	X       int       `db:"x" json:"x"`
	Y       int       `db:"y" json:"y"`
	Terrain string    `db:"terrain" json:"terrain"`
	At      time.Time `db:"at" json:"at"`
}

type terrainRow struct {
	X       int `db:"x"`
	Y       int `db:"y"`
	Terrain int `db:"terrain"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS terrain (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		terrain INTEGER NOT NULL,
		PRIMARY KEY (x, y)
	);

	CREATE TABLE IF NOT EXISTS edits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		terrain TEXT NOT NULL,
		at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveTerrain writes the whole layer to the database (full replace).
func (db *DB) SaveTerrain(layer *world.TerrainLayer) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM terrain"); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO terrain (x, y, terrain) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for c, t := range layer.All() {
		if _, err := stmt.Exec(c.X, c.Y, int(t)); err != nil {
			return fmt.Errorf("insert terrain %s: %w", c, err)
		}
	}

	return tx.Commit()
}

// LoadTerrain reads the stored terrain layer.
func (db *DB) LoadTerrain() (*world.TerrainLayer, error) {
	var rows []terrainRow
	if err := db.conn.Select(&rows, "SELECT x, y, terrain FROM terrain"); err != nil {
		return nil, fmt.Errorf("load terrain: %w", err)
	}

	layer := world.NewTerrainLayer()
	for _, r := range rows {
		layer.Set(hex.Coordinate{X: r.X, Y: r.Y}, world.Terrain(r.Terrain))
	}
	return layer, nil
}

// SetTerrain stores the terrain of a single coordinate.
func (db *DB) SetTerrain(c hex.Coordinate, t world.Terrain) error {
	if t == world.TerrainNone {
		_, err := db.conn.Exec("DELETE FROM terrain WHERE x = ? AND y = ?", c.X, c.Y)
		return err
	}
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO terrain (x, y, terrain) VALUES (?, ?, ?)",
		c.X, c.Y, int(t),
	)
	return err
}

// RecordEdit appends a terrain change to the edit log.
func (db *DB) RecordEdit(c hex.Coordinate, t world.Terrain) error {
	_, err := db.conn.Exec(
		"INSERT INTO edits (x, y, terrain, at) VALUES (?, ?, ?, ?)",
		c.X, c.Y, t.String(), time.Now().UTC(),
	)
	return err
}

// RecentEdits returns the most recent N edits, newest first.
func (db *DB) RecentEdits(limit int) ([]Edit, error) {
	var edits []Edit
	err := db.conn.Select(&edits,
		"SELECT id, x, y, terrain, at FROM edits ORDER BY id DESC LIMIT ?",
		limit,
	)
	return edits, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// HasWorldState reports whether a world has been saved before.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta(MetaSeed)
	return err == nil
}

// LoadSeed returns the saved generation seed.
func (db *DB) LoadSeed() (int64, error) {
	v, err := db.GetMeta(MetaSeed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("load seed: no saved world")
	}
	if err != nil {
		return 0, fmt.Errorf("load seed: %w", err)
	}
	return strconv.ParseInt(v, 10, 64)
}

// SaveWorldState performs a full save of the terrain layer and grid metadata.
func (db *DB) SaveWorldState(g *world.Grid, layer *world.TerrainLayer, seed int64) error {
	slog.Info("saving world state", "cells", g.Len(), "terrain", layer.Len())

	if err := db.SaveTerrain(layer); err != nil {
		return fmt.Errorf("save terrain: %w", err)
	}
	meta := map[string]string{
		MetaSeed:   strconv.FormatInt(seed, 10),
		MetaWidth:  strconv.Itoa(g.Width),
		MetaHeight: strconv.Itoa(g.Height),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Info("world state saved")
	return nil
}
