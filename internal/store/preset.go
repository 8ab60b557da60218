package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Preset is a named set of tracker parameters.
type Preset struct {
	Name      string         `json:"name"`
	Params    map[string]int `json:"params"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PresetRepository provides CRUD operations for presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

// Save inserts a preset or replaces the parameters of an existing one.
func (r *PresetRepository) Save(p *Preset) error {
	if p.Name == "" {
		return errors.New("preset name is required")
	}

	params, err := json.Marshal(p.Params)
	if err != nil {
		return err
	}

	now := time.Now()
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	_, err = r.db.Exec(
		`INSERT INTO presets (name, params, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET params = excluded.params, updated_at = excluded.updated_at`,
		p.Name, string(params), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// Get retrieves a preset by name.
func (r *PresetRepository) Get(name string) (*Preset, error) {
	p := &Preset{}
	var params string

	err := r.db.QueryRow(
		`SELECT name, params, created_at, updated_at FROM presets WHERE name = ?`, name,
	).Scan(&p.Name, &params, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(params), &p.Params); err != nil {
		return nil, err
	}
	return p, nil
}

// List retrieves all presets ordered by name.
func (r *PresetRepository) List() ([]*Preset, error) {
	rows, err := r.db.Query(`SELECT name, params, created_at, updated_at FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var presets []*Preset
	for rows.Next() {
		p := &Preset{}
		var params string
		if err := rows.Scan(&p.Name, &params, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &p.Params); err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return presets, nil
}

// Delete removes a preset by name.
func (r *PresetRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM presets WHERE name = ?`, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
