package capture

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/camtrack/internal/testutil"
)

func TestDirCamera_Playback(t *testing.T) {
	dir := t.TempDir()
	frames := testutil.MovingSequence(40, 30, testutil.Gray, testutil.Blue, image.Rect(0, 0, 8, 8), image.Pt(4, 2), 3)
	if err := testutil.WritePNGs(dir, frames); err != nil {
		t.Fatalf("WritePNGs() error = %v", err)
	}
	// Non-image files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cam := NewDirCamera(dir, 0, false)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	if cam.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cam.Len())
	}

	for i := range frames {
		got, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		if got.Width != 40 || got.Height != 30 || got.Channels != 3 {
			t.Fatalf("frame %d = %dx%dx%d, want 40x30x3", i, got.Width, got.Height, got.Channels)
		}

		// The object's top-left pixel survives the PNG round trip.
		x, y := 4*i, 2*i
		if b, r := got.Pixel(x, y, 0), got.Pixel(x, y, 2); b != 255 || r != 0 {
			t.Errorf("frame %d pixel (%d, %d) = B%d R%d, want blue", i, x, y, b, r)
		}
	}

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoMoreFrames) {
		t.Errorf("ReadFrame() error = %v, want ErrNoMoreFrames", err)
	}
}

func TestDirCamera_ScaleAndLoop(t *testing.T) {
	dir := t.TempDir()
	frames := testutil.MovingSequence(80, 60, testutil.Gray, testutil.Red, image.Rect(10, 10, 30, 30), image.Pt(0, 0), 1)
	if err := testutil.WritePNGs(dir, frames); err != nil {
		t.Fatalf("WritePNGs() error = %v", err)
	}

	cam := NewDirCamera(dir, 40, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		if got.Width != 40 || got.Height != 30 {
			t.Errorf("frame = %dx%d, want 40x30", got.Width, got.Height)
		}
	}
}

func TestDirCamera_OpenErrors(t *testing.T) {
	if err := NewDirCamera(filepath.Join(t.TempDir(), "missing"), 0, false).Open(); err == nil {
		t.Error("Open() on a missing directory should fail")
	}

	if err := NewDirCamera(t.TempDir(), 0, false).Open(); err == nil {
		t.Error("Open() on an empty directory should fail")
	}

	cam := NewDirCamera(t.TempDir(), 0, false)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}
