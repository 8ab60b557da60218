package capture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ayusman/camtrack/internal/vision"
)

// DirCamera plays back the PNG and JPEG files of a directory in lexical order.
type DirCamera struct {
	dir   string
	width int
	loop  bool

	mu      sync.Mutex
	files   []string
	index   int
	running bool
	fps     int
}

// NewDirCamera creates a camera over the images in dir. When width is positive,
// frames are scaled to that width keeping their aspect ratio. When loop is set,
// playback restarts after the last file.
func NewDirCamera(dir string, width int, loop bool) *DirCamera {
	return &DirCamera{
		dir:   dir,
		width: width,
		loop:  loop,
		fps:   DefaultFPS,
	}
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// Open lists the frame files of the directory.
func (c *DirCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read frame directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isFrameFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(c.dir, e.Name()))
	}
	if len(files) == 0 {
		return fmt.Errorf("no frames found in %s", c.dir)
	}
	sort.Strings(files)

	c.files = files
	c.index = 0
	c.running = true
	return nil
}

// Close stops playback.
func (c *DirCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame decodes the next file.
func (c *DirCamera) ReadFrame() (*vision.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if c.index >= len(c.files) {
		if !c.loop {
			return nil, ErrNoMoreFrames
		}
		c.index = 0
	}

	path := c.files[c.index]
	c.index++

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	return vision.FromImage(img, c.width), nil
}

// Len returns the number of frames found by Open.
func (c *DirCamera) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// SetFPS sets the playback rate. Values less than or equal to 0 are ignored.
func (c *DirCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

// FPS returns the playback rate.
func (c *DirCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// IsOpen returns true between Open and Close.
func (c *DirCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
