//go:build linux

// Package v4l2 implements capturing a frame directly from a Video4Linux2
// device, without external tools.
package v4l2

import (
	"context"
	"errors"
	"fmt"
	stdimage "image"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"

	"github.com/plantcam/plantcam/image"
)

// Backend captures motion JPEG frames through the V4L2 API.
type Backend struct {
	logger *zap.SugaredLogger
}

// Check that Backend implements interface Backend.
var _ image.Backend = (*Backend)(nil)

// New returns a new V4L2 backend.
func New(logger *zap.SugaredLogger) *Backend {
	return &Backend{logger}
}

// ListDevices returns the video capture devices under /dev. Nodes that cannot
// be opened or do not capture video, such as metadata nodes, are skipped.
func (b *Backend) ListDevices() ([]image.Device, error) {
	paths, err := device.GetAllDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("listing video devices: %v", err)
	}
	devs := []image.Device{}
	for _, path := range paths {
		dev, err := device.Open(path)
		if err != nil {
			b.logger.Debugw("skipping device", "path", path, "error", err)
			continue
		}
		c := dev.Capability()
		if err := dev.Close(); err != nil {
			b.logger.Debugw("closing device", "path", path, "error", err)
		}
		if !c.IsVideoCaptureSupported() {
			b.logger.Debugw("skipping device without video capture", "path", path, "card", c.Card)
			continue
		}
		devs = append(devs, image.Device{
			Name: deviceName(c),
			ID:   path,
		})
	}
	return image.NumberDevices(devs), nil
}

func deviceName(c v4l2.Capability) string {
	if c.BusInfo == "" {
		return c.Card
	}
	return fmt.Sprintf("%s (%s)", c.Card, c.BusInfo)
}

// Stream is an opened V4L2 device.
type Stream struct {
	dev    *device.Device
	logger *zap.SugaredLogger
}

// Check that Stream implements interface Stream.
var _ image.Stream = (*Stream)(nil)

// Open opens dev for motion JPEG at the requested size and frame rate. Open
// fails if the driver settles on a different pixel format or size.
func (b *Backend) Open(dev image.Device, format image.Format) (image.Stream, error) {
	d, err := device.Open(
		dev.ID,
		device.WithBufferSize(1),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtMJPEG,
			Width:       uint32(format.Width),
			Height:      uint32(format.Height),
			Field:       v4l2.FieldAny,
		}),
		device.WithFPS(uint32(format.FrameRate)),
	)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v", dev.ID, err)
	}
	pf, err := d.GetPixFormat()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("reading pixel format of %s: %v", dev.ID, err)
	}
	if pf.PixelFormat != v4l2.PixelFmtMJPEG || int(pf.Width) != format.Width || int(pf.Height) != format.Height {
		d.Close()
		return nil, fmt.Errorf("device %s does not support %s, driver offered %s %dx%d",
			dev.ID, format, v4l2.PixelFormats[pf.PixelFormat], pf.Width, pf.Height)
	}
	b.logger.Infow("camera format", "device", dev.ID, "format", format.String())
	return &Stream{d, b.logger}, nil
}

// Capture starts streaming and returns the first frame that decodes. Frames
// that fail to decode, as some cameras send while warming up, are skipped.
func (s *Stream) Capture(ctx context.Context) (stdimage.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, image.CaptureTimeout)
	defer cancel()

	if err := s.dev.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting stream: %v", err)
	}
	return firstFrame(ctx, s.dev.GetOutput(), s.logger)
}

// firstFrame returns the first frame from frames that decodes.
func firstFrame(ctx context.Context, frames <-chan []byte, logger *zap.SugaredLogger) (stdimage.Image, error) {
	var lastErr error
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return nil, errors.New("stream closed before a frame arrived")
			}
			img, err := image.DecodeMJPEG(frame)
			if err != nil {
				logger.Debugw("skipping undecodable frame", "bytes", len(frame), "error", err)
				lastErr = err
				continue
			}
			return img, nil
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("waiting for frame: %w (last decode error: %v)", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("waiting for frame: %w", ctx.Err())
		}
	}
}

// Close releases the device.
func (s *Stream) Close() error {
	return s.dev.Close()
}
