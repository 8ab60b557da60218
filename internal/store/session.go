package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is one tracking run: a seed selection and the parameters in effect when
// it was made.
type Session struct {
	ID          string          `json:"id"`
	Seed        image.Rectangle `json:"seed"`
	FrameWidth  int             `json:"frame_width"`
	FrameHeight int             `json:"frame_height"`
	Backend     string          `json:"backend"`
	Params      map[string]int  `json:"params"`
	Points      int             `json:"points"`
	CreatedAt   time.Time       `json:"created_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, seed_x, seed_y, seed_width, seed_height, frame_width, frame_height,
	backend, params, points, created_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var x, y, w, h int
	var params string
	var ended sql.NullTime

	err := row.Scan(&sess.ID, &x, &y, &w, &h, &sess.FrameWidth, &sess.FrameHeight,
		&sess.Backend, &params, &sess.Points, &sess.CreatedAt, &ended)
	if err != nil {
		return nil, err
	}

	sess.Seed = image.Rect(x, y, x+w, y+h)
	if err := json.Unmarshal([]byte(params), &sess.Params); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// Create inserts a new session. An empty ID is replaced by a random UUID once the
// row has been written, so a failed insert leaves sess.ID unchanged.
func (r *SessionRepository) Create(sess *Session) error {
	id := sess.ID
	if id == "" {
		id = uuid.NewString()
	}
	if sess.Backend == "" {
		sess.Backend = "native"
	}
	createdAt := time.Now()

	params, err := json.Marshal(sess.Params)
	if err != nil {
		return err
	}
	if sess.Params == nil {
		params = []byte("{}")
	}

	_, err = r.db.Exec(
		`INSERT INTO sessions (id, seed_x, seed_y, seed_width, seed_height, frame_width, frame_height,
			backend, params, points, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id, sess.Seed.Min.X, sess.Seed.Min.Y, sess.Seed.Dx(), sess.Seed.Dy(),
		sess.FrameWidth, sess.FrameHeight, sess.Backend, string(params), createdAt,
	)
	if err != nil {
		return err
	}

	sess.ID = id
	sess.CreatedAt = createdAt
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// End marks a session as finished.
func (r *SessionRepository) End(id string) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, time.Now(), id)
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

// Delete removes a session and its track points.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
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
