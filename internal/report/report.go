// Package report renders recorded tracking sessions.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ayusman/camtrack/internal/store"
)

// Default plot size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

// ErrNoPoints is returned when a session has no recorded track points.
var ErrNoPoints = errors.New("session has no track points")

var (
	pathColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	startColor = color.RGBA{G: 160, A: 255}
	endColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Summary describes the motion of a tracked object over a session.
type Summary struct {
	Points     int     `json:"points"`
	FirstFrame int     `json:"first_frame"`
	LastFrame  int     `json:"last_frame"`
	PathLength float64 `json:"path_length"`
	MeanWidth  float64 `json:"mean_width"`
	MeanHeight float64 `json:"mean_height"`
}

// Summarize computes the travelled distance and mean window size of points, which
// must be in frame order.
func Summarize(points []*store.TrackPoint) Summary {
	var s Summary
	if len(points) == 0 {
		return s
	}

	s.Points = len(points)
	s.FirstFrame = points[0].Frame
	s.LastFrame = points[len(points)-1].Frame
	for i, p := range points {
		s.MeanWidth += p.Rotated.Size.Width
		s.MeanHeight += p.Rotated.Size.Height
		if i > 0 {
			prev := points[i-1].Rotated.Center
			s.PathLength += math.Hypot(p.Rotated.Center.X-prev.X, p.Rotated.Center.Y-prev.Y)
		}
	}
	s.MeanWidth /= float64(len(points))
	s.MeanHeight /= float64(len(points))
	return s
}

// Trajectory builds a plot of the window centers of a session in image
// coordinates, with y growing downwards.
func Trajectory(sess *store.Session, points []*store.TrackPoint) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}

	centers := make(plotter.XYs, len(points))
	for i, p := range points {
		centers[i] = plotter.XY{X: p.Rotated.Center.X, Y: p.Rotated.Center.Y}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %s", sess.ID)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	if sess.FrameWidth > 0 && sess.FrameHeight > 0 {
		p.X.Min, p.X.Max = 0, float64(sess.FrameWidth)
		p.Y.Min, p.Y.Max = 0, float64(sess.FrameHeight)
	}

	line, err := plotter.NewLine(centers)
	if err != nil {
		return nil, fmt.Errorf("trajectory line: %w", err)
	}
	line.Color = pathColor
	line.Width = vg.Points(1)

	dots, err := plotter.NewScatter(centers)
	if err != nil {
		return nil, fmt.Errorf("trajectory points: %w", err)
	}
	dots.Color = pathColor
	dots.Radius = vg.Points(1.5)

	start, err := plotter.NewScatter(centers[:1])
	if err != nil {
		return nil, err
	}
	start.Color = startColor
	start.Radius = vg.Points(4)

	end, err := plotter.NewScatter(centers[len(centers)-1:])
	if err != nil {
		return nil, err
	}
	end.Color = endColor
	end.Radius = vg.Points(4)

	p.Add(line, dots, start, end)
	p.Legend.Add("path", line)
	p.Legend.Add("start", start)
	p.Legend.Add("end", end)
	p.Legend.Top = true

	return p, nil
}

// WritePNG renders the trajectory of a session as a PNG image to w.
func WritePNG(w io.Writer, sess *store.Session, points []*store.TrackPoint, width, height vg.Length) error {
	p, err := Trajectory(sess, points)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// SavePNG renders the trajectory of a session into the file at path.
func SavePNG(path string, sess *store.Session, points []*store.TrackPoint) error {
	p, err := Trajectory(sess, points)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
