// Package programs persists the scheduler's program slots in SQLite. The
// controller never reads or writes this store; programs live entirely on
// the control-surface side.
package programs

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thatsimonsguy/pool-controller/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	slot     INTEGER PRIMARY KEY CHECK (slot >= 0 AND slot < 3),
	name     TEXT    NOT NULL,
	enabled  BOOLEAN NOT NULL DEFAULT FALSE,
	schedule TEXT    NOT NULL
);`

// Slot pairs a program with its priority position (lower wins).
type Slot struct {
	Slot int `json:"slot"`
	model.Program
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply program schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// List returns all occupied slots in priority order.
func (s *Store) List() ([]Slot, error) {
	rows, err := s.db.Query(`SELECT slot, name, enabled, schedule FROM programs ORDER BY slot ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var sl Slot
		var schedule string
		if err := rows.Scan(&sl.Slot, &sl.Name, &sl.Enabled, &schedule); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		if err := json.Unmarshal([]byte(schedule), &sl.Schedule); err != nil {
			return nil, fmt.Errorf("failed to decode schedule for slot %d: %w", sl.Slot, err)
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

func (s *Store) Get(slot int) (*model.Program, error) {
	var p model.Program
	var schedule string
	err := s.db.QueryRow(`SELECT name, enabled, schedule FROM programs WHERE slot = ?`, slot).
		Scan(&p.Name, &p.Enabled, &schedule)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program slot %d: %w", slot, err)
	}
	if err := json.Unmarshal([]byte(schedule), &p.Schedule); err != nil {
		return nil, fmt.Errorf("failed to decode schedule for slot %d: %w", slot, err)
	}
	return &p, nil
}

// Save writes a slot, replacing any existing program there.
func (s *Store) Save(slot int, p model.Program) error {
	if slot < 0 || slot >= model.MaxProgramSlots {
		return fmt.Errorf("slot %d out of range", slot)
	}
	if p.Name == "" {
		return fmt.Errorf("program name is required")
	}
	schedule, err := json.Marshal(p.Schedule)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO programs (slot, name, enabled, schedule) VALUES (?, ?, ?, ?)`,
		slot, p.Name, p.Enabled, string(schedule))
	if err != nil {
		return fmt.Errorf("failed to save program slot %d: %w", slot, err)
	}
	return nil
}

func (s *Store) SetEnabled(slot int, enabled bool) error {
	res, err := s.db.Exec(`UPDATE programs SET enabled = ? WHERE slot = ?`, enabled, slot)
	if err != nil {
		return fmt.Errorf("failed to update program slot %d: %w", slot, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no program in slot %d", slot)
	}
	return nil
}

func (s *Store) Delete(slot int) error {
	_, err := s.db.Exec(`DELETE FROM programs WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("failed to delete program slot %d: %w", slot, err)
	}
	return nil
}
