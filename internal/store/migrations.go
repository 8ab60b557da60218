package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per seeded selection
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			seed_x INTEGER NOT NULL,
			seed_y INTEGER NOT NULL,
			seed_width INTEGER NOT NULL CHECK(seed_width > 0),
			seed_height INTEGER NOT NULL CHECK(seed_height > 0),
			frame_width INTEGER NOT NULL DEFAULT 0,
			frame_height INTEGER NOT NULL DEFAULT 0,
			backend TEXT NOT NULL DEFAULT 'native',
			params TEXT NOT NULL DEFAULT '{}',
			points INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,

		// Track points table - the sanitized result of every tracking step
		`CREATE TABLE IF NOT EXISTS track_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame INTEGER NOT NULL,
			center_x REAL NOT NULL,
			center_y REAL NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			angle REAL NOT NULL,
			track_x INTEGER NOT NULL,
			track_y INTEGER NOT NULL,
			track_width INTEGER NOT NULL,
			track_height INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Presets table - named parameter sets
		`CREATE TABLE IF NOT EXISTS presets (
			name TEXT PRIMARY KEY,
			params TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_track_points_session_id ON track_points(session_id, frame)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
