package native

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/camtrack/internal/vision"
)

var searchCriteria = vision.TermCriteria{MaxIter: 10, Epsilon: 1}

func blob(w, h int, r image.Rectangle) *vision.Image {
	img := vision.NewImage(w, h, 1)
	img.Fill(r, 255)
	return img
}

func TestCamShift_ConvergesOnBlob(t *testing.T) {
	prob := blob(100, 80, image.Rect(40, 30, 60, 50))

	got, err := New().CamShift(prob, image.Rect(30, 25, 50, 45), searchCriteria)
	require.NoError(t, err)

	assert.InDelta(t, 50, got.Center.X, 1)
	assert.InDelta(t, 40, got.Center.Y, 1)

	// A uniform 20px square has a standard deviation of sqrt(399/12) per axis.
	side := 4 * math.Sqrt(399.0/12)
	assert.InDelta(t, side, got.Size.Width, 0.5)
	assert.InDelta(t, side, got.Size.Height, 0.5)
}

func TestCamShift_Orientation(t *testing.T) {
	prob := blob(100, 80, image.Rect(20, 35, 60, 45))

	got, err := New().CamShift(prob, image.Rect(20, 35, 60, 45), searchCriteria)
	require.NoError(t, err)

	assert.Greater(t, got.Size.Height, got.Size.Width, "length should be the major axis")
	assert.InDelta(t, 90, got.Angle, 1, "horizontal blob")
	assert.InDelta(t, 40, got.Center.X, 1)
	assert.InDelta(t, 40, got.Center.Y, 1)
}

func TestCamShift_EmptyDensity(t *testing.T) {
	prob := vision.NewImage(50, 50, 1)

	got, err := New().CamShift(prob, image.Rect(10, 10, 30, 30), searchCriteria)
	require.NoError(t, err)
	assert.Equal(t, vision.RotatedRect{}, got)
}

func TestCamShift_InvalidInput(t *testing.T) {
	ops := New()

	_, err := ops.CamShift(vision.NewImage(10, 10, 1), image.Rect(5, 5, 5, 9), searchCriteria)
	assert.ErrorIs(t, err, vision.ErrEmptyWindow)

	_, err = ops.CamShift(vision.NewImage(10, 10, 3), image.Rect(0, 0, 5, 5), searchCriteria)
	assert.ErrorIs(t, err, vision.ErrChannels)
}

func TestMeanShift_StaysInsideImage(t *testing.T) {
	prob := blob(60, 60, image.Rect(50, 50, 60, 60))

	got := meanShift(prob, image.Rect(35, 35, 55, 55), searchCriteria)
	assert.True(t, got.In(prob.Bounds()), "window %v escaped the image", got)
	assert.Equal(t, 20, got.Dx())
	assert.Equal(t, 20, got.Dy())
}

func TestRound_HalfToEven(t *testing.T) {
	assert.Equal(t, 0, round(-0.5))
	assert.Equal(t, 0, round(0.5))
	assert.Equal(t, 2, round(1.5))
	assert.Equal(t, 54, round(54.5))
	assert.Equal(t, -2, round(-1.6))
}
