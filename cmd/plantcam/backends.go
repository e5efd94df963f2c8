package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/plantcam/plantcam/image"
	"github.com/plantcam/plantcam/image/ffmpeg"
	"github.com/plantcam/plantcam/image/gstreamer"
	"github.com/plantcam/plantcam/image/imagesnap"
)

func newBackend(name string, logger *zap.SugaredLogger) (image.Backend, error) {
	switch name {
	case "ffmpeg":
		return ffmpeg.New(logger), nil
	case "gstreamer":
		return gstreamer.New(logger), nil
	case "imagesnap":
		return imagesnap.New(logger), nil
	case "v4l2":
		return newV4L2Backend(logger)
	default:
		return nil, fmt.Errorf("unknown camera backend %q", name)
	}
}
