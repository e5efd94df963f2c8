// Package image implements finding camera devices, grabbing single frames from
// them, and cropping frames.
package image

import (
	"context"
	"image"
)

// Backend enumerates camera devices and opens them for capture.
type Backend interface {
	// ListDevices returns the currently attached devices, in the order the
	// driver reports them. An empty list is not an error.
	ListDevices() ([]Device, error)

	// Open prepares dev for capturing in format. Open fails if the device
	// cannot be opened or does not support format.
	Open(dev Device, format Format) (Stream, error)
}

// Stream is an opened device.
type Stream interface {
	// Capture blocks until one frame is available and returns it.
	Capture(ctx context.Context) (image.Image, error)

	// Close releases the device.
	Close() error
}
