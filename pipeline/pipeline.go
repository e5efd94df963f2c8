// Package pipeline runs one snapshot: select a camera, capture a frame, crop
// it, save it and upload it. A run goes through the stages once, in order,
// and stops at the first failure.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/plantcam/plantcam"
	"github.com/plantcam/plantcam/image"
	"github.com/plantcam/plantcam/publish"
	"github.com/plantcam/plantcam/snapshot"
)

// Runner runs snapshots.
type Runner struct {
	Logger *zap.SugaredLogger

	// NewBackend returns the capture backend with the given name.
	NewBackend func(name string, logger *zap.SugaredLogger) (image.Backend, error)

	// NewPublisher returns the publisher to upload to. If nil,
	// publish.NewS3Publisher is used.
	NewPublisher func(cfg plantcam.Config, logger *zap.SugaredLogger) (publish.Publisher, error)

	// Now returns the time used to name the snapshot. If nil, time.Now is
	// used.
	Now func() time.Time
}

// Result describes how far a run got.
type Result struct {
	State  plantcam.State
	Device image.Device // Selected device, valid from StateDeviceSelected.
	Path   string       // Local snapshot file, valid from StateCropped.
	Key    string       // Object key, valid from StatePublished.
}

// RunFile loads the configuration at path and runs a snapshot with it.
func (r *Runner) RunFile(ctx context.Context, path string) (Result, error) {
	cfg, err := plantcam.Load(path)
	if err != nil {
		res := Result{State: plantcam.StateStart}
		return r.fail(res, plantcam.ErrConfig, err)
	}
	return r.Run(ctx, cfg)
}

// Run takes one snapshot. On failure the returned error is a
// *plantcam.StageError, and the result's state is StateFailed. Files already
// written are left in place.
func (r *Runner) Run(ctx context.Context, cfg plantcam.Config) (Result, error) {
	logger := r.logger()
	res := Result{State: plantcam.StateStart}

	if err := cfg.Validate(); err != nil {
		return r.fail(res, plantcam.ErrConfig, err)
	}
	logger.Infow("configuration loaded", "config", cfg)
	res.State = plantcam.StateConfigLoaded

	if r.NewBackend == nil {
		return r.fail(res, plantcam.ErrConfig, errors.New("no capture backends available"))
	}
	backend, err := r.NewBackend(cfg.CameraBackend, logger)
	if err != nil {
		return r.fail(res, plantcam.ErrConfig, errors.Wrapf(err, "camera backend %s", cfg.CameraBackend))
	}
	devs, err := backend.ListDevices()
	if err != nil {
		return r.fail(res, plantcam.ErrDeviceNotFound, errors.Wrap(err, "listing devices"))
	}
	logger.Infof("%d cameras detected", len(devs))
	index, err := image.Select(devs, cfg.CameraID, cfg.NoDefaultCamera, logger)
	if err != nil {
		return r.fail(res, plantcam.ErrDeviceNotFound, err)
	}
	res.State = plantcam.StateDeviceSelected

	// The index is only valid for this enumeration, resolve it right away.
	if index >= len(devs) {
		return r.fail(res, plantcam.ErrDeviceOpen, errors.Errorf("no camera with index %d, %d cameras detected", index, len(devs)))
	}
	res.Device = devs[index]
	format := image.Format{Width: cfg.CameraWidth, Height: cfg.CameraHeight, FrameRate: cfg.CameraFrameRate}
	stream, err := backend.Open(res.Device, format)
	if err != nil {
		return r.fail(res, plantcam.ErrDeviceOpen, errors.Wrapf(err, "opening %s as %s", res.Device.Description(), format))
	}
	res.State = plantcam.StateStreamOpened

	frame, err := stream.Capture(ctx)
	if cerr := stream.Close(); cerr != nil {
		logger.Debugw("closing camera stream", "error", cerr)
	}
	if err != nil {
		return r.fail(res, plantcam.ErrCapture, errors.Wrap(err, "capturing frame"))
	}
	logger.Debugw("frame captured", "size", frame.Bounds().Size().String())
	res.State = plantcam.StateFrameCaptured

	cropped, err := image.Crop(frame, cfg.CropRect())
	if err != nil {
		return r.fail(res, plantcam.ErrCropBounds, err)
	}
	res.State = plantcam.StateCropped

	res.Path = snapshot.BuildPath(cfg.OutputDir, cfg.OutputPrefix, r.now())
	logger.Infow("saving image", "path", res.Path)
	if err := snapshot.Persist(cropped, res.Path, cfg.JPEGQuality); err != nil {
		return r.fail(res, plantcam.ErrPersist, err)
	}
	res.State = plantcam.StatePersisted

	newPublisher := r.NewPublisher
	if newPublisher == nil {
		newPublisher = func(cfg plantcam.Config, logger *zap.SugaredLogger) (publish.Publisher, error) {
			return publish.NewS3Publisher(cfg, logger)
		}
	}
	pub, err := newPublisher(cfg, logger)
	if err != nil {
		return r.fail(res, plantcam.ErrUpload, err)
	}
	res.Key, err = pub.Publish(ctx, res.Path)
	if err != nil {
		return r.fail(res, plantcam.ErrUpload, err)
	}
	res.State = plantcam.StatePublished

	logger.Infow("snapshot published", "path", res.Path, "key", res.Key)
	res.State = plantcam.StateDone
	return res, nil
}

func (r *Runner) fail(res Result, kind, err error) (Result, error) {
	r.logger().Errorw("snapshot failed", "after", res.State.String(), "kind", kind.Error(), "error", err)
	serr := &plantcam.StageError{State: res.State, Kind: kind, Err: err}
	res.State = plantcam.StateFailed
	return res, serr
}

func (r *Runner) logger() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
