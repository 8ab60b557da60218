package store

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/camtrack/internal/vision"
)

// newTestStore creates a new Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func createSession(t *testing.T, s *Store) *Session {
	t.Helper()
	sess := &Session{
		Seed:        image.Rect(10, 20, 40, 60),
		FrameWidth:  320,
		FrameHeight: 240,
		Params:      map[string]int{"hue_bins": 20, "threshold": 40},
	}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess
}

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)

	if sess.ID == "" {
		t.Fatal("Create should assign an ID")
	}
	if sess.Backend != "native" {
		t.Errorf("Backend = %q, want default %q", sess.Backend, "native")
	}
	if sess.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := s.Sessions().GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}

	if got.Seed != sess.Seed {
		t.Errorf("Seed = %v, want %v", got.Seed, sess.Seed)
	}
	if got.FrameWidth != 320 || got.FrameHeight != 240 {
		t.Errorf("frame = %dx%d, want 320x240", got.FrameWidth, got.FrameHeight)
	}
	if diff := cmp.Diff(sess.Params, got.Params); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}
	if got.EndedAt != nil {
		t.Error("EndedAt should be nil for an open session")
	}
}

func TestSessionRepository_CreateDuplicateID(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)

	dup := &Session{ID: sess.ID, Seed: image.Rect(0, 0, 5, 5)}
	if err := s.Sessions().Create(dup); err == nil {
		t.Error("creating a session with a duplicate ID should fail")
	}
}

func TestSessionRepository_CreateFailureLeavesID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sess := &Session{Seed: image.Rect(0, 0, 5, 5)}
	if err := s.Sessions().Create(sess); err == nil {
		t.Fatal("Create() on a closed store should fail")
	}
	if sess.ID != "" {
		t.Errorf("ID = %q after a failed insert, want empty", sess.ID)
	}
	if !sess.CreatedAt.IsZero() {
		t.Error("CreatedAt should stay zero after a failed insert")
	}

	named := &Session{ID: "given", Seed: image.Rect(0, 0, 5, 5)}
	if err := s.Sessions().Create(named); err == nil {
		t.Fatal("Create() on a closed store should fail")
	}
	if named.ID != "given" {
		t.Errorf("ID = %q, want the caller's ID kept", named.ID)
	}
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Sessions().GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_ListEndDelete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	a := createSession(t, s)
	b := createSession(t, s)

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d sessions, want 2", len(list))
	}
	ids := map[string]bool{list[0].ID: true, list[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Errorf("List() = %v, want sessions %s and %s", ids, a.ID, b.ID)
	}

	if err := repo.End(a.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	got, _ := repo.GetByID(a.ID)
	if got.EndedAt == nil {
		t.Error("EndedAt should be set after End")
	}
	if err := repo.End(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second End() error = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestPointRepository_AppendAndList(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)

	points := []*TrackPoint{
		{
			SessionID: sess.ID,
			Frame:     2,
			Rotated: vision.RotatedRect{
				Center: vision.Point2f{X: 30.5, Y: 41},
				Size:   vision.Size2f{Width: 20, Height: 33.25},
				Angle:  12.5,
			},
			Track: image.Rect(14, 20, 47, 62),
		},
		{
			SessionID: sess.ID,
			Frame:     1,
			Rotated: vision.RotatedRect{
				Center: vision.Point2f{X: 25, Y: 40},
				Size:   vision.Size2f{Width: 20, Height: 20},
			},
			Track: image.Rect(14, 29, 36, 51),
		},
	}

	if err := s.Points().Append(points...); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	for _, p := range points {
		if p.ID == 0 {
			t.Error("Append should assign IDs")
		}
	}

	got, err := s.Points().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListBySession() returned %d points, want 2", len(got))
	}
	if got[0].Frame != 1 || got[1].Frame != 2 {
		t.Errorf("points not in frame order: %d, %d", got[0].Frame, got[1].Frame)
	}
	if got[1].Rotated != points[0].Rotated {
		t.Errorf("Rotated = %+v, want %+v", got[1].Rotated, points[0].Rotated)
	}
	if got[1].Track != points[0].Track {
		t.Errorf("Track = %v, want %v", got[1].Track, points[0].Track)
	}

	updated, _ := s.Sessions().GetByID(sess.ID)
	if updated.Points != 2 {
		t.Errorf("session Points = %d, want 2", updated.Points)
	}

	if err := s.Points().DeleteBySession(sess.ID); err != nil {
		t.Fatalf("DeleteBySession() error = %v", err)
	}
	got, _ = s.Points().ListBySession(sess.ID)
	if len(got) != 0 {
		t.Errorf("ListBySession() after delete returned %d points", len(got))
	}
}

func TestPointRepository_UnknownSession(t *testing.T) {
	s := newTestStore(t)

	err := s.Points().Append(&TrackPoint{SessionID: "missing", Frame: 1, Track: image.Rect(0, 0, 1, 1)})
	if err == nil {
		t.Error("Append() for an unknown session should violate the foreign key")
	}
}

func TestPointRepository_CascadeOnSessionDelete(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)

	if err := s.Points().Append(&TrackPoint{SessionID: sess.ID, Frame: 1, Track: image.Rect(0, 0, 20, 20)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Sessions().Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM track_points`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d points left after session delete, want 0", n)
	}
}
