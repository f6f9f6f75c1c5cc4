package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kataras/roi-export/pkg/measure"
)

// DB is a SQLite sink for exported measurement rows.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Export is one export run as stored in the exports table.
type Export struct {
	ID        int64
	FileName  string
	Symbol    string
	Message   string
	CreatedAt time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		unit_symbol TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		export_id INTEGER NOT NULL,
		image_id INTEGER NOT NULL,
		image_name TEXT NOT NULL,
		roi_id INTEGER NOT NULL,
		shape_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		text TEXT NOT NULL,
		z INTEGER,
		t INTEGER,
		channel TEXT NOT NULL,
		channel_index INTEGER NOT NULL,
		area REAL,
		length REAL,
		points_count INTEGER,
		min REAL,
		max REAL,
		sum REAL,
		mean REAL,
		std_dev REAL,
		x REAL,
		y REAL,
		width REAL,
		height REAL,
		radius_x REAL,
		radius_y REAL,
		x1 REAL,
		y1 REAL,
		x2 REAL,
		y2 REAL,
		points TEXT,
		FOREIGN KEY (export_id) REFERENCES exports(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_export_id ON measurements(export_id);
	CREATE INDEX IF NOT EXISTS idx_measurements_image_shape ON measurements(image_id, shape_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveExport stores an export run and all its rows in one transaction and
// returns the new export id.
func (db *DB) SaveExport(e Export, rows []measure.Row) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO exports (file_name, unit_symbol, message) VALUES (?, ?, ?)`,
		e.FileName, e.Symbol, e.Message)
	if err != nil {
		return 0, fmt.Errorf("failed to insert export: %w", err)
	}
	exportID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO measurements (
			export_id, image_id, image_name, roi_id, shape_id, type, text, z, t,
			channel, channel_index, area, length, points_count, min, max, sum, mean, std_dev,
			x, y, width, height, radius_x, radius_y, x1, y1, x2, y2, points
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		g, s := r.Geometry, r.Stats
		_, err := stmt.Exec(
			exportID, r.ImageID, r.ImageName, r.ROIID, r.ShapeID, r.Type, r.Text,
			planeIndex(r.Plane.Z), planeIndex(r.Plane.T),
			r.Channel, r.ChannelIndex,
			nullFloat(g.Area), nullFloat(g.Length),
			nullInt(s.Points), nullFloat(s.Min), nullFloat(s.Max), nullFloat(s.Sum), nullFloat(s.Mean), nullFloat(s.StdDev),
			nullFloat(g.X), nullFloat(g.Y), nullFloat(g.Width), nullFloat(g.Height),
			nullFloat(g.RadiusX), nullFloat(g.RadiusY),
			nullFloat(g.X1), nullFloat(g.Y1), nullFloat(g.X2), nullFloat(g.Y2),
			sql.NullString{String: g.Points.Value, Valid: g.Points.Valid},
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert measurement for shape %d: %w", r.ShapeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit export: %w", err)
	}
	return exportID, nil
}

// Exports lists the stored export runs, newest first.
func (db *DB) Exports() ([]Export, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT id, file_name, unit_symbol, message, created_at FROM exports ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var exports []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.FileName, &e.Symbol, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

// Measurements returns the rows of one export in insertion order.
func (db *DB) Measurements(exportID int64) ([]measure.Row, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`
		SELECT image_id, image_name, roi_id, shape_id, type, text, z, t,
			channel, channel_index, area, length, points_count, min, max, sum, mean, std_dev,
			x, y, width, height, radius_x, radius_y, x1, y1, x2, y2, points
		FROM measurements WHERE export_id = ? ORDER BY id
	`, exportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var out []measure.Row
	for rows.Next() {
		var (
			r                         measure.Row
			z, t, points              sql.NullInt64
			area, length              sql.NullFloat64
			minV, maxV, sum, mean, sd sql.NullFloat64
			x, y, width, height       sql.NullFloat64
			rx, ry, x1, y1, x2, y2    sql.NullFloat64
			pointList                 sql.NullString
		)
		err := rows.Scan(
			&r.ImageID, &r.ImageName, &r.ROIID, &r.ShapeID, &r.Type, &r.Text, &z, &t,
			&r.Channel, &r.ChannelIndex, &area, &length, &points, &minV, &maxV, &sum, &mean, &sd,
			&x, &y, &width, &height, &rx, &ry, &x1, &y1, &x2, &y2, &pointList,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}

		r.Plane = measure.Plane{Z: fromPlaneIndex(z), T: fromPlaneIndex(t)}
		r.Stats = measure.Stats{
			Points: measure.Optional[int64]{Value: points.Int64, Valid: points.Valid},
			Min:    fromNull(minV),
			Max:    fromNull(maxV),
			Sum:    fromNull(sum),
			Mean:   fromNull(mean),
			StdDev: fromNull(sd),
		}
		r.Geometry = measure.Geometry{
			X:       fromNull(x),
			Y:       fromNull(y),
			Width:   fromNull(width),
			Height:  fromNull(height),
			RadiusX: fromNull(rx),
			RadiusY: fromNull(ry),
			X1:      fromNull(x1),
			Y1:      fromNull(y1),
			X2:      fromNull(x2),
			Y2:      fromNull(y2),
			Points:  measure.Optional[string]{Value: pointList.String, Valid: pointList.Valid},
			Area:    fromNull(area),
			Length:  fromNull(length),
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// planeIndex stores planes 1-based, as they are displayed.
func planeIndex(i measure.Optional[int]) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i.Value + 1), Valid: i.Valid}
}

func fromPlaneIndex(n sql.NullInt64) measure.Optional[int] {
	if !n.Valid {
		return measure.Optional[int]{}
	}
	return measure.Some(int(n.Int64) - 1)
}

func nullFloat(v measure.Optional[float64]) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Value, Valid: v.Valid}
}

func nullInt(v measure.Optional[int64]) sql.NullInt64 {
	return sql.NullInt64{Int64: v.Value, Valid: v.Valid}
}

func fromNull(n sql.NullFloat64) measure.Optional[float64] {
	if !n.Valid {
		return measure.Optional[float64]{}
	}
	return measure.Some(n.Float64)
}
