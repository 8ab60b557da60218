package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/camtrack/internal/app"
	"github.com/ayusman/camtrack/internal/capture"
	"github.com/ayusman/camtrack/internal/report"
	"github.com/ayusman/camtrack/internal/server"
	"github.com/ayusman/camtrack/internal/store"
)

func main() {
	var (
		device  = flag.Int("device", 0, "camera device id")
		dir     = flag.String("dir", "", "read frames from the images in this directory instead of a camera")
		width   = flag.Int("width", 0, "scale directory frames to this width (0 keeps the original size)")
		loop    = flag.Bool("loop", true, "replay directory frames when they run out")
		backend = flag.String("backend", app.BackendNative, "vision backend: native or opencv")
		dbPath  = flag.String("db", "", "database path (default ~/.camtrack/camtrack.db)")
		addr    = flag.String("listen", ":8080", "HTTP listen address")
		preset  = flag.String("preset", "", "apply this stored parameter preset at startup")
		fps     = flag.Int("fps", capture.DefaultFPS, "frames processed per second")
		motion  = flag.Float64("motion", 0, "record track points only when this percentage of pixels changed (0 records all)")
		plotID  = flag.String("plot", "", "render the trajectory of this session to -out and exit")
		plotOut = flag.String("out", "trajectory.png", "output file for -plot")
	)
	flag.Parse()

	fmt.Println("camtrack - CAMShift object tracker")

	// Initialize the store
	if *dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}

		dbDir := filepath.Join(homeDir, ".camtrack")
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		*dbPath = filepath.Join(dbDir, "camtrack.db")
	}

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	if *plotID != "" {
		if err := plotSession(st, *plotID, *plotOut); err != nil {
			log.Fatalf("Failed to plot session: %v", err)
		}
		fmt.Printf("Wrote %s\n", *plotOut)
		return
	}

	// Choose the frame source
	var cam capture.Camera
	if *dir != "" {
		cam = capture.NewDirCamera(*dir, *width, *loop)
		fmt.Printf("Reading frames from: %s\n", *dir)
	} else {
		cam = capture.NewCamera(*device)
	}

	cfg := app.DefaultConfig()
	cfg.Store = st
	cfg.Camera = cam
	cfg.Backend = *backend
	cfg.FPS = *fps
	cfg.MotionThresh = *motion
	cfg.Preset = *preset

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracker: %v", err)
	}
	if err := application.Start(); err != nil {
		log.Fatalf("Failed to start tracking: %v", err)
	}
	defer application.Stop()

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		App:       application,
	})

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		errCh <- srv.ListenAndServe(*addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down", sig)
	case err := <-errCh:
		log.Printf("Server failed: %v", err)
	}
}

// plotSession renders the trajectory of a stored session into a PNG file.
func plotSession(st *store.Store, id, out string) error {
	sess, err := st.Sessions().GetByID(id)
	if err != nil {
		return err
	}
	points, err := st.Points().ListBySession(id)
	if err != nil {
		return err
	}
	return report.SavePNG(out, sess, points)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.camtrack/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".camtrack", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
