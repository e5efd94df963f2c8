//go:build !linux

package main

import (
	"errors"

	"go.uber.org/zap"

	"github.com/plantcam/plantcam/image"
)

func newV4L2Backend(logger *zap.SugaredLogger) (image.Backend, error) {
	return nil, errors.New("the v4l2 backend is only available on linux, use ffmpeg, gstreamer or imagesnap")
}
