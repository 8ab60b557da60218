package app

import (
	"errors"
	"image"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/camtrack/internal/camshift"
	"github.com/ayusman/camtrack/internal/capture"
	"github.com/ayusman/camtrack/internal/store"
	"github.com/ayusman/camtrack/internal/testutil"
)

const (
	frameW = 160
	frameH = 120
)

var (
	seedRect = image.Rect(40, 40, 70, 70)
	step     = image.Pt(6, 4)
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// newTestApp returns an app reading n frames of a blue square moving over gray.
func newTestApp(t *testing.T, s *store.Store, n int) (*App, *capture.MockCamera) {
	t.Helper()

	frames := testutil.MovingSequence(frameW, frameH, testutil.Gray, testutil.Blue, seedRect, step, n)
	cam := capture.NewMockCamera(frames, false)

	cfg := DefaultConfig()
	cfg.Store = s
	cfg.Camera = cam
	cfg.FPS = 200

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, cam
}

func TestNew_Validation(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := New(cfg); err == nil {
		t.Error("New() without a camera should fail")
	}

	cfg.Camera = capture.NewMockCamera(nil, false)
	cfg.Backend = "quantum"
	if _, err := New(cfg); err == nil {
		t.Error("New() with an unknown backend should fail")
	}

	cfg.Backend = BackendNative
	cfg.Tracker.MedianBlur = 2
	if _, err := New(cfg); !errors.Is(err, camshift.ErrInvalidArgument) {
		t.Errorf("New() error = %v, want ErrInvalidArgument", err)
	}
}

func TestApp_SelectBeforeFrame(t *testing.T) {
	a, _ := newTestApp(t, nil, 3)

	_, err := a.Select(seedRect)
	if !errors.Is(err, camshift.ErrPrecondition) {
		t.Errorf("Select() error = %v, want ErrPrecondition", err)
	}
	if !errors.Is(err, ErrNoFrame) {
		t.Errorf("Select() error = %v, want ErrNoFrame", err)
	}
}

func TestApp_StepTracksAndRecords(t *testing.T) {
	s := newTestStore(t)
	a, cam := newTestApp(t, s, 4)
	if err := cam.Open(); err != nil {
		t.Fatal(err)
	}

	// Before a selection, steps only update the frame.
	if err := a.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if snap := a.Snapshot(); snap.Tracking || snap.Frame != 1 {
		t.Errorf("Snapshot() = %+v, want frame 1 without tracking", snap)
	}
	if a.Frame() == nil {
		t.Fatal("Frame() should return the latest frame")
	}

	sess, err := a.Select(seedRect)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Select() should record a session")
	}
	if sess.FrameWidth != frameW || sess.FrameHeight != frameH {
		t.Errorf("session frame = %dx%d, want %dx%d", sess.FrameWidth, sess.FrameHeight, frameW, frameH)
	}

	for i := 0; i < 3; i++ {
		if err := a.Step(); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}

	snap := a.Snapshot()
	if !snap.Tracking || snap.SessionID != sess.ID {
		t.Errorf("Snapshot() = %+v, want tracking in session %s", snap, sess.ID)
	}

	// The fourth frame holds the object after three steps.
	obj := seedRect.Add(step.Mul(3))
	wantX := float64(obj.Min.X) + float64(obj.Dx()-1)/2
	wantY := float64(obj.Min.Y) + float64(obj.Dy()-1)/2
	if math.Abs(snap.Rotated.Center.X-wantX) > 1.5 || math.Abs(snap.Rotated.Center.Y-wantY) > 1.5 {
		t.Errorf("center = (%.1f, %.1f), want about (%.1f, %.1f)",
			snap.Rotated.Center.X, snap.Rotated.Center.Y, wantX, wantY)
	}

	points, err := s.Points().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("recorded %d points, want 3", len(points))
	}
	if points[0].Frame != 2 || points[2].Frame != 4 {
		t.Errorf("point frames = %d..%d, want 2..4", points[0].Frame, points[2].Frame)
	}
	if points[2].Track != snap.Track {
		t.Errorf("last point track = %v, want %v", points[2].Track, snap.Track)
	}

	bp, err := a.BackProjection()
	if err != nil {
		t.Fatalf("BackProjection() error = %v", err)
	}
	if bp.CountNonZero() == 0 {
		t.Error("BackProjection() should mark the object")
	}

	if err := a.Step(); !errors.Is(err, capture.ErrNoMoreFrames) {
		t.Errorf("Step() after the last frame error = %v, want ErrNoMoreFrames", err)
	}
}

func TestApp_SelectWhenSessionNotRecorded(t *testing.T) {
	s := newTestStore(t)
	a, cam := newTestApp(t, s, 3)
	if err := cam.Open(); err != nil {
		t.Fatal(err)
	}
	if err := a.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	// A closed database makes the session insert fail.
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sess, err := a.Select(seedRect)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if sess.ID != "" {
		t.Errorf("session ID = %q, want empty when the insert fails", sess.ID)
	}

	for i := 0; i < 2; i++ {
		if err := a.Step(); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if snap := a.Snapshot(); !snap.Tracking || snap.SessionID != "" {
		t.Errorf("Snapshot() = %+v, want tracking without a session", snap)
	}
}

func TestApp_SelectEndsPreviousSession(t *testing.T) {
	s := newTestStore(t)
	a, cam := newTestApp(t, s, 3)
	cam.Open()

	if err := a.Step(); err != nil {
		t.Fatal(err)
	}
	first, err := a.Select(seedRect)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Select(image.Rect(0, 0, 20, 20))
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("each selection should start a new session")
	}

	got, err := s.Sessions().GetByID(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.EndedAt == nil {
		t.Error("previous session should be ended")
	}
	if a.Session().ID != second.ID {
		t.Errorf("Session() = %s, want %s", a.Session().ID, second.ID)
	}
}

func TestApp_InvalidSelectionKeepsState(t *testing.T) {
	a, cam := newTestApp(t, nil, 2)
	cam.Open()
	if err := a.Step(); err != nil {
		t.Fatal(err)
	}

	_, err := a.Select(image.Rect(500, 500, 520, 520))
	if !errors.Is(err, camshift.ErrInvalidArgument) {
		t.Errorf("Select() error = %v, want ErrInvalidArgument", err)
	}
	if a.Session() != nil {
		t.Error("a rejected selection should not start a session")
	}

	if err := a.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if a.Snapshot().Tracking {
		t.Error("tracking should not start after a rejected selection")
	}
}

func TestApp_Parameters(t *testing.T) {
	a, _ := newTestApp(t, nil, 1)

	if err := a.SetParameter("threshold", 80); err != nil {
		t.Fatalf("SetParameter() error = %v", err)
	}
	if got := a.Parameters()["threshold"]; got != 80 {
		t.Errorf("threshold = %d, want 80", got)
	}

	if err := a.SetParameter("gamma", 1); !errors.Is(err, camshift.ErrInvalidArgument) {
		t.Errorf("SetParameter(unknown) error = %v, want ErrInvalidArgument", err)
	}
	if err := a.SetParameter("median_blur", 4); !errors.Is(err, camshift.ErrInvalidArgument) {
		t.Errorf("SetParameter(median_blur, 4) error = %v, want ErrInvalidArgument", err)
	}
	if got := a.Parameters()["median_blur"]; got != 3 {
		t.Errorf("median_blur = %d, want 3", got)
	}
}

func TestApp_Presets(t *testing.T) {
	s := newTestStore(t)
	a, _ := newTestApp(t, s, 1)

	if err := a.SetParameters(map[string]int{"threshold": 120, "hue_bins": 32}); err != nil {
		t.Fatalf("SetParameters() error = %v", err)
	}
	if _, err := a.SavePreset("bright"); err != nil {
		t.Fatalf("SavePreset() error = %v", err)
	}

	if err := a.ApplyPreset("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ApplyPreset(missing) error = %v, want ErrNotFound", err)
	}

	cfg := DefaultConfig()
	cfg.Store = s
	cfg.Camera = capture.NewMockCamera(nil, false)
	cfg.Preset = "bright"
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() with preset error = %v", err)
	}
	params := b.Parameters()
	if params["threshold"] != 120 || params["hue_bins"] != 32 {
		t.Errorf("Parameters() = %v, want preset values", params)
	}

	cfg.Preset = "missing"
	if _, err := New(cfg); err == nil {
		t.Error("New() with a missing preset should fail")
	}

	noStore, _ := newTestApp(t, nil, 1)
	if _, err := noStore.SavePreset("x"); err == nil {
		t.Error("SavePreset() without a store should fail")
	}
}

func TestApp_Subscribe(t *testing.T) {
	a, cam := newTestApp(t, nil, 2)
	cam.Open()

	ch, unsubscribe := a.Subscribe()
	if err := a.Step(); err != nil {
		t.Fatal(err)
	}

	select {
	case snap := <-ch:
		if snap.Frame != 1 {
			t.Errorf("snapshot frame = %d, want 1", snap.Frame)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing without subscribers must not block.
	if err := a.Step(); err != nil {
		t.Fatal(err)
	}
}

func TestApp_StartStop(t *testing.T) {
	s := newTestStore(t)
	a, cam := newTestApp(t, s, 5)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.Running() || !cam.IsOpen() {
		t.Fatal("Start() should open the camera and run the pipeline")
	}
	if err := a.Start(); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Snapshot().Frame == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if a.Snapshot().Frame == 0 {
		t.Fatal("pipeline did not process any frame")
	}

	sess, err := a.Select(seedRect)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	a.Stop()
	if a.Running() || cam.IsOpen() {
		t.Error("Stop() should close the camera and stop the pipeline")
	}
	if a.Session() != nil {
		t.Error("Stop() should end the session")
	}

	got, err := s.Sessions().GetByID(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.EndedAt == nil {
		t.Error("session should be ended after Stop()")
	}
}
