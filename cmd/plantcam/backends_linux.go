package main

import (
	"go.uber.org/zap"

	"github.com/plantcam/plantcam/image"
	"github.com/plantcam/plantcam/image/v4l2"
)

func newV4L2Backend(logger *zap.SugaredLogger) (image.Backend, error) {
	return v4l2.New(logger), nil
}
