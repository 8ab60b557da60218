package store

import (
	"database/sql"
	"image"
	"time"

	"github.com/ayusman/camtrack/internal/vision"
)

// TrackPoint is the outcome of one tracking step within a session.
type TrackPoint struct {
	ID        int64              `json:"id"`
	SessionID string             `json:"session_id"`
	Frame     int                `json:"frame"`
	Rotated   vision.RotatedRect `json:"rotated"`
	Track     image.Rectangle    `json:"track"`
	CreatedAt time.Time          `json:"created_at"`
}

// PointRepository stores track points.
type PointRepository struct {
	db *sql.DB
}

// Points returns the track point repository for this store.
func (s *Store) Points() *PointRepository {
	return &PointRepository{db: s.db}
}

// Append inserts points in a single transaction and bumps the point count of their
// sessions.
func (r *PointRepository) Append(points ...*TrackPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO track_points (session_id, frame, center_x, center_y, width, height, angle,
			track_x, track_y, track_width, track_height, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	counts := make(map[string]int)
	now := time.Now()
	for _, p := range points {
		p.CreatedAt = now
		rr := p.Rotated
		result, err := stmt.Exec(p.SessionID, p.Frame,
			rr.Center.X, rr.Center.Y, rr.Size.Width, rr.Size.Height, rr.Angle,
			p.Track.Min.X, p.Track.Min.Y, p.Track.Dx(), p.Track.Dy(), p.CreatedAt)
		if err != nil {
			return err
		}
		if p.ID, err = result.LastInsertId(); err != nil {
			return err
		}
		counts[p.SessionID]++
	}

	for id, n := range counts {
		if _, err := tx.Exec(`UPDATE sessions SET points = points + ? WHERE id = ?`, n, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession retrieves the points of a session in frame order.
func (r *PointRepository) ListBySession(sessionID string) ([]*TrackPoint, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, frame, center_x, center_y, width, height, angle,
			track_x, track_y, track_width, track_height, created_at
		 FROM track_points
		 WHERE session_id = ?
		 ORDER BY frame, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*TrackPoint
	for rows.Next() {
		p := &TrackPoint{}
		var x, y, w, h int
		err := rows.Scan(&p.ID, &p.SessionID, &p.Frame,
			&p.Rotated.Center.X, &p.Rotated.Center.Y, &p.Rotated.Size.Width, &p.Rotated.Size.Height, &p.Rotated.Angle,
			&x, &y, &w, &h, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		p.Track = image.Rect(x, y, x+w, y+h)
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return points, nil
}

// DeleteBySession removes all points of a session.
func (r *PointRepository) DeleteBySession(sessionID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM track_points WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE sessions SET points = 0 WHERE id = ?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}
