package image_test

import (
	stdimage "image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plantcam/plantcam"
	"github.com/plantcam/plantcam/image"
)

// testFrame returns a frame where each pixel encodes its own coordinates.
func testFrame(r stdimage.Rectangle) *stdimage.NRGBA {
	img := stdimage.NewNRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), uint8(x ^ y), 0xff})
		}
	}
	return img
}

func TestCrop(t *testing.T) {
	frame := testFrame(stdimage.Rect(0, 0, 64, 48))
	rects := []stdimage.Rectangle{
		stdimage.Rect(0, 0, 64, 48),
		stdimage.Rect(10, 5, 30, 25),
		stdimage.Rect(63, 47, 64, 48),
		stdimage.Rect(0, 10, 64, 11),
	}
	for _, r := range rects {
		out, err := image.Crop(frame, r)
		require.NoError(t, err, r)
		require.Equal(t, stdimage.Rect(0, 0, r.Dx(), r.Dy()), out.Bounds(), r)
		for y := 0; y < r.Dy(); y++ {
			for x := 0; x < r.Dx(); x++ {
				require.Equal(t, frame.NRGBAAt(r.Min.X+x, r.Min.Y+y), out.NRGBAAt(x, y))
			}
		}
	}
}

func TestCropOffsetFrame(t *testing.T) {
	// Frames with a non-zero origin are cropped relative to their corner.
	frame := testFrame(stdimage.Rect(100, 100, 164, 148))
	out, err := image.Crop(frame, stdimage.Rect(2, 3, 12, 13))
	require.NoError(t, err)
	require.Equal(t, stdimage.Rect(0, 0, 10, 10), out.Bounds())
	require.Equal(t, frame.NRGBAAt(102, 103), out.NRGBAAt(0, 0))
}

func TestCropOutOfBounds(t *testing.T) {
	frame := testFrame(stdimage.Rect(0, 0, 640, 480))
	rects := []stdimage.Rectangle{
		stdimage.Rect(100, 100, 800, 800),
		stdimage.Rect(0, 0, 641, 480),
		stdimage.Rect(-1, 0, 10, 10),
		stdimage.Rect(5, 5, 5, 10),
	}
	for _, r := range rects {
		_, err := image.Crop(frame, r)
		require.ErrorIs(t, err, plantcam.ErrCropBounds, r)
	}
}
