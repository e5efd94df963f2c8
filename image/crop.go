package image

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/plantcam/plantcam"
)

// Crop returns the part of frame inside rect, with bounds starting at (0, 0).
// rect is in coordinates relative to the top left corner of frame. No
// resampling is done, the result has exactly the size of rect.
//
// Crop returns an error wrapping plantcam.ErrCropBounds if rect is empty or not
// fully inside frame.
func Crop(frame image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	b := frame.Bounds()
	size := image.Rect(0, 0, b.Dx(), b.Dy())
	if rect.Empty() || !rect.In(size) {
		return nil, fmt.Errorf("%w: crop %v does not fit in %dx%d frame", plantcam.ErrCropBounds, rect, b.Dx(), b.Dy())
	}
	return imaging.Crop(frame, rect.Add(b.Min)), nil
}
