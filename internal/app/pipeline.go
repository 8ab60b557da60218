package app

import (
	"errors"
	"log"
	"time"

	"github.com/ayusman/camtrack/internal/capture"
	"github.com/ayusman/camtrack/internal/store"
)

// runPipeline reads frames at the configured rate until stopCh is closed or the
// camera runs out of frames.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			err := a.Step()
			switch {
			case err == nil:
				failures = 0
			case errors.Is(err, capture.ErrNoMoreFrames):
				log.Println("Frame source exhausted")
				return
			default:
				// Log the first failure of a streak only.
				if failures == 0 {
					log.Printf("Error in tracking step: %v", err)
				}
				failures++
			}
		}
	}
}

// Step reads one frame and, once a selection has been made, runs one tracking step
// on it.
//
// Steps:
// 1. Read a frame from the camera
// 2. Measure scene motion when a motion threshold is configured
// 3. Run the tracker when seeded
// 4. Record a track point for the open session unless the scene is static
// 5. Publish the snapshot to subscribers
func (a *App) Step() error {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		return err
	}

	moved, motion := true, 0.0
	if a.motion != nil {
		moved, motion = a.motion.Detect(frame)
	}

	a.mu.Lock()
	a.frameIndex++
	a.frame = frame
	a.tracker.SetFrame(frame)

	snap := Snapshot{
		Frame:     a.frameIndex,
		Motion:    motion,
		Timestamp: time.Now(),
	}

	var point *store.TrackPoint
	if a.seeded {
		if err := a.tracker.Run(); err != nil {
			a.mu.Unlock()
			return err
		}
		snap.Tracking = true
		snap.Track, _ = a.tracker.Track()
		snap.Rotated, _ = a.tracker.RotatedTrack()

		if a.session != nil {
			snap.SessionID = a.session.ID
			if moved && a.session.ID != "" {
				point = &store.TrackPoint{
					SessionID: a.session.ID,
					Frame:     a.frameIndex,
					Rotated:   snap.Rotated,
					Track:     snap.Track,
				}
			}
		}
	}
	a.snapshot = snap
	a.mu.Unlock()

	if point != nil && a.config.Store != nil {
		if err := a.config.Store.Points().Append(point); err != nil {
			log.Printf("Error recording track point: %v", err)
		}
	}

	a.publish(snap)
	return nil
}
