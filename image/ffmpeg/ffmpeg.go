// Package ffmpeg implements capturing a frame with ffmpeg, listing devices with
// v4l2-ctl.
package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/plantcam/plantcam/image"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y ffmpeg v4l-utils")

// Backend captures frames using ffmpeg.
type Backend struct {
	logger *zap.SugaredLogger
}

// Check that Backend implements interface Backend.
var _ image.Backend = (*Backend)(nil)

// New returns a new ffmpeg backend.
func New(logger *zap.SugaredLogger) *Backend {
	return &Backend{logger}
}

// ListDevices returns a list of devices that can be used for recording.
func (b *Backend) ListDevices() ([]image.Device, error) {
	cmd := exec.Command("v4l2-ctl", "--list-devices")
	buf, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if errors.Is(err, exec.ErrNotFound) {
				err = errInstallHint
			}
			return nil, fmt.Errorf("listing devices using v4l2-ctl: %v", err)
		}
		// v4l2-ctl fails when it finds no devices. Whatever it printed is
		// still usable.
		b.logger.Debugw("v4l2-ctl exited with error", "error", err, "stderr", strings.TrimSpace(string(exitErr.Stderr)))
	}
	return parseDevices(string(buf)), nil
}

func parseDevices(s string) []image.Device {
	var curDevice string
	devices := []image.Device{}
	for _, line := range strings.Split(s, "\n") {
		if !strings.HasPrefix(line, "\t") {
			curDevice = strings.TrimSuffix(strings.TrimSpace(line), ":")
			continue
		}
		if curDevice == "" || strings.HasPrefix(curDevice, "bcm2835-") {
			continue
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/dev/video") {
			continue
		}
		devices = append(devices, image.Device{
			Name: curDevice,
			ID:   line,
		})
	}
	return image.NumberDevices(devices)
}

// Open checks that dev can be used, and returns a stream that runs ffmpeg to
// capture a single frame.
func (b *Backend) Open(dev image.Device, format image.Format) (image.Stream, error) {
	if !dev.Supports(format) {
		return nil, fmt.Errorf("device %s does not support %s (caps: %s)", dev.ID, format, image.CapsString(dev))
	}
	if _, err := os.Stat(dev.ID); err != nil {
		return nil, fmt.Errorf("device %s: %v", dev.ID, err)
	}
	return image.NewToolStream(b.logger, "ffmpeg", func(out string) []string {
		return args(dev.ID, format, out)
	}, errInstallHint)
}

func args(device string, f image.Format, out string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-input_format", "mjpeg",
		"-video_size", fmt.Sprintf("%dx%d", f.Width, f.Height),
		"-framerate", fmt.Sprintf("%d", f.FrameRate),
		"-i", device,
		"-frames:v", "1",
		"-c:v", "copy",
		"-bsf:v", "mjpeg2jpeg",
		"-y",
		out,
	}
}
