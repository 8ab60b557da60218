// Package app wires a frame source, the CAMShift tracker and the store into a running
// tracking service.
package app

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/ayusman/camtrack/internal/camshift"
	"github.com/ayusman/camtrack/internal/capture"
	"github.com/ayusman/camtrack/internal/store"
	"github.com/ayusman/camtrack/internal/vision"
	"github.com/ayusman/camtrack/internal/vision/cv"
	"github.com/ayusman/camtrack/internal/vision/native"
)

// Vision backends.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// ErrNoFrame is returned when a selection is made before any frame was captured.
var ErrNoFrame = errors.New("no frame captured yet")

// Config holds configuration options for the application.
type Config struct {
	// Store persists sessions and presets. Optional.
	Store *store.Store
	// Camera is the frame source.
	Camera capture.Camera
	// Backend selects the vision implementation: "native" or "opencv".
	Backend string
	// Tracker holds the initial tracker settings.
	Tracker camshift.Config
	// FPS is the pipeline rate.
	FPS int
	// MotionThresh is the share of changed pixels, in percent, below which track
	// points are not recorded. Zero records every step.
	MotionThresh float64
	// Preset names a stored preset applied at construction.
	Preset string
	// SubscriberBuffer is the channel capacity of each subscriber.
	SubscriberBuffer int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendNative,
		Tracker:          camshift.DefaultConfig(),
		FPS:              capture.DefaultFPS,
		SubscriberBuffer: 8,
	}
}

// NewOps returns the vision backend registered under name.
func NewOps(name string) (vision.Ops, error) {
	switch name {
	case "", BackendNative:
		return native.New(), nil
	case BackendOpenCV:
		return cv.New(), nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q", name)
	}
}

// Snapshot is the tracking state after a pipeline step.
type Snapshot struct {
	Frame     int                `json:"frame"`
	SessionID string             `json:"session_id,omitempty"`
	Tracking  bool               `json:"tracking"`
	Track     image.Rectangle    `json:"track"`
	Rotated   vision.RotatedRect `json:"rotated"`
	Motion    float64            `json:"motion"`
	Timestamp time.Time          `json:"timestamp"`
}

// App runs the tracker over the frames of a camera.
type App struct {
	config  Config
	camera  capture.Camera
	motion  *capture.MotionDetector
	tracker *camshift.Tracker

	mu         sync.Mutex
	frame      *vision.Image
	frameIndex int
	seeded     bool
	session    *store.Session
	snapshot   Snapshot

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("camera is required")
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.SubscriberBuffer <= 0 {
		config.SubscriberBuffer = 8
	}

	ops, err := NewOps(config.Backend)
	if err != nil {
		return nil, err
	}
	tracker, err := camshift.New(ops, config.Tracker)
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}

	a := &App{
		config:      config,
		camera:      config.Camera,
		tracker:     tracker,
		subscribers: make(map[chan Snapshot]struct{}),
	}

	if config.MotionThresh > 0 {
		a.motion = capture.NewMotionDetector(config.MotionThresh)
	}

	if config.Preset != "" {
		if err := a.ApplyPreset(config.Preset); err != nil {
			return nil, fmt.Errorf("apply preset %q: %w", config.Preset, err)
		}
		log.Printf("Applied preset %q", config.Preset)
	}

	return a, nil
}

// Start opens the camera and begins the tracking pipeline.
func (a *App) Start() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Printf("Tracking pipeline started (%s backend, %d fps)", a.backend(), a.config.FPS)
	return nil
}

// Stop halts the pipeline, closes the camera and ends the open session.
func (a *App) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		<-a.doneCh
		a.stopCh = nil
		a.doneCh = nil
	}

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	if a.motion != nil {
		a.motion.Close()
	}

	a.mu.Lock()
	a.endSession()
	a.mu.Unlock()

	log.Println("Tracking pipeline stopped")
}

// Running reports whether the pipeline goroutine is active.
func (a *App) Running() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.stopCh != nil
}

func (a *App) backend() string {
	if a.config.Backend == "" {
		return BackendNative
	}
	return a.config.Backend
}

// Select seeds the tracker with a rectangle of the most recent frame and starts a
// new session.
func (a *App) Select(r image.Rectangle) (*store.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frame.Empty() {
		return nil, fmt.Errorf("%w: %w", camshift.ErrPrecondition, ErrNoFrame)
	}
	if err := a.tracker.SetSelection(r); err != nil {
		return nil, err
	}
	a.seeded = true
	a.endSession()

	sess := &store.Session{
		Seed:        r,
		FrameWidth:  a.frame.Width,
		FrameHeight: a.frame.Height,
		Backend:     a.backend(),
		Params:      a.tracker.ParameterValues(),
	}
	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(sess); err != nil {
			log.Printf("Error recording session: %v", err)
		}
	}
	a.session = sess

	track, _ := a.tracker.Track()
	a.snapshot.SessionID = sess.ID
	a.snapshot.Tracking = true
	a.snapshot.Track = track

	log.Printf("Tracking seeded at %v (session %s)", r, sess.ID)
	return sess, nil
}

// endSession closes the current session. Callers hold a.mu.
func (a *App) endSession() {
	if a.session == nil {
		return
	}
	if a.config.Store != nil && a.session.ID != "" {
		if err := a.config.Store.Sessions().End(a.session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("Error ending session %s: %v", a.session.ID, err)
		}
	}
	a.session = nil
}

// SetParameter sets a tracker parameter by name.
func (a *App) SetParameter(name string, value int) error {
	p, ok := camshift.ParseParameter(name)
	if !ok {
		return fmt.Errorf("%w: unknown parameter %q", camshift.ErrInvalidArgument, name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker.SetParameter(p, value)
}

// SetParameters sets several tracker parameters at once; on error none is changed.
func (a *App) SetParameters(values map[string]int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker.SetParameters(values)
}

// Parameters returns the tracker parameters keyed by name.
func (a *App) Parameters() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker.ParameterValues()
}

// Snapshot returns the state after the latest step.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// BackProjection returns the density map of the latest step.
func (a *App) BackProjection() (*vision.Image, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker.BackProjection()
}

// Frame returns a copy of the latest frame, or nil before the first one.
func (a *App) Frame() *vision.Image {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame.Clone()
}

// Session returns the open session, or nil.
func (a *App) Session() *store.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Store returns the configured store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// ApplyPreset loads a stored preset into the tracker.
func (a *App) ApplyPreset(name string) error {
	if a.config.Store == nil {
		return errors.New("no store configured")
	}
	p, err := a.config.Store.Presets().Get(name)
	if err != nil {
		return err
	}
	return a.SetParameters(p.Params)
}

// SavePreset stores the current tracker parameters under name.
func (a *App) SavePreset(name string) (*store.Preset, error) {
	if a.config.Store == nil {
		return nil, errors.New("no store configured")
	}
	p := &store.Preset{Name: name, Params: a.Parameters()}
	if err := a.config.Store.Presets().Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Subscribe returns a channel receiving every snapshot and a function that
// unsubscribes. Slow subscribers miss snapshots rather than stall the pipeline.
func (a *App) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, a.config.SubscriberBuffer)

	a.subMu.Lock()
	a.subscribers[ch] = struct{}{}
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subscribers, ch)
			a.subMu.Unlock()
			close(ch)
		})
	}
}

func (a *App) publish(s Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for ch := range a.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}
