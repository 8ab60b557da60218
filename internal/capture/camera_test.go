package capture

import (
	"errors"
	"testing"

	"github.com/ayusman/camtrack/internal/vision"
)

// sources returns one unopened instance of every Camera implementation.
func sources(t *testing.T) map[string]Camera {
	t.Helper()
	return map[string]Camera{
		"device": NewCamera(0),
		"dir":    NewDirCamera(t.TempDir(), 0, false),
		"mock":   NewMockCamera([]*vision.Image{vision.NewImage(8, 6, 3)}, false),
	}
}

func TestCamera_Contract(t *testing.T) {
	for name, cam := range sources(t) {
		t.Run(name, func(t *testing.T) {
			if cam.IsOpen() {
				t.Error("a new camera should not be open")
			}
			if got := cam.FPS(); got != DefaultFPS {
				t.Errorf("FPS() = %d, want %d", got, DefaultFPS)
			}

			if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
				t.Errorf("ReadFrame() before Open error = %v, want ErrCameraNotOpen", err)
			}
			if err := cam.Close(); err != nil {
				t.Errorf("Close() before Open error = %v", err)
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	steps := []struct {
		set  int
		want int
	}{
		{set: 30, want: 30},
		{set: 1, want: 1},
		{set: 0, want: 1},
		{set: -5, want: 1},
		{set: 12, want: 12},
	}

	for name, cam := range sources(t) {
		t.Run(name, func(t *testing.T) {
			for _, s := range steps {
				cam.SetFPS(s.set)
				if got := cam.FPS(); got != s.want {
					t.Errorf("after SetFPS(%d), FPS() = %d, want %d", s.set, got, s.want)
				}
			}
		})
	}
}

func TestDeviceCamera_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0)
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	defer cam.Close()

	if !cam.IsOpen() {
		t.Fatal("IsOpen() should return true after Open()")
	}

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() failed: %v", err)
	}
	if frame.Empty() || frame.Channels != 3 {
		t.Errorf("ReadFrame() = %dx%dx%d, want a non-empty BGR frame", frame.Width, frame.Height, frame.Channels)
	}
	if frame.Width != DefaultWidth || frame.Height != DefaultHeight {
		t.Logf("frame is %dx%d; the device ignored the requested %dx%d", frame.Width, frame.Height, DefaultWidth, DefaultHeight)
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}
