package db

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"fuelcell/ml"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB stores the history of served predictions.
type DB struct {
	conn *sql.DB
}

// InitDB opens the SQLite database at path and applies pending migrations.
func InitDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	if err := migrateUp(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrateUp(conn *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// SavePrediction appends p to the history.
func (d *DB) SavePrediction(p *ml.Prediction) error {
	if p == nil {
		return errors.New("prediction is nil")
	}
	targets, err := json.Marshal(p.Targets)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
        INSERT INTO predictions (
            voltage, current, load_condition, targets, artifact_version, created_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Voltage, p.Current, p.LoadCondition, string(targets), p.ArtifactVersion, p.CreatedAt.UTC())
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (d *DB) RecentPredictions(limit int) ([]ml.Prediction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
        SELECT voltage, current, load_condition, targets, artifact_version, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]ml.Prediction, 0)
	for rows.Next() {
		var p ml.Prediction
		var targets string
		if err := rows.Scan(&p.Voltage, &p.Current, &p.LoadCondition, &targets, &p.ArtifactVersion, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(targets), &p.Targets); err != nil {
			return nil, fmt.Errorf("decode targets: %w", err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}
