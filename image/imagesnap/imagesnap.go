// Package imagesnap implements capturing a frame with the imagesnap command
// for macOS.
package imagesnap

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/plantcam/plantcam/image"
)

var errInstallHint = errors.New("executable not found, install with: brew install imagesnap")

// Backend captures frames using imagesnap. Imagesnap picks the resolution
// itself, the requested format is only checked against the captured frame by
// the crop stage.
type Backend struct {
	logger *zap.SugaredLogger
}

// Check that Backend implements interface Backend.
var _ image.Backend = (*Backend)(nil)

// New returns a new imagesnap backend.
func New(logger *zap.SugaredLogger) *Backend {
	return &Backend{logger}
}

// ListDevices returns all image capturing devices available to imagesnap.
func (b *Backend) ListDevices() ([]image.Device, error) {
	cmd := exec.Command("imagesnap", "-l")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices with imagesnap -l: %v", err)
	}
	return parseDevices(string(buf)), nil
}

func parseDevices(s string) []image.Device {
	devs := []image.Device{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "=> ") {
			// Newer format, example: "=> FaceTime HD Camera (Built-in)"
			name := line[len("=> "):]
			devs = append(devs, image.Device{Name: name, ID: name})
		} else if strings.HasPrefix(line, "<") {
			// Older format, example: "<AVCaptureDALDevice: 0x7fa2c7852fd0 [FaceTime HD Camera (Built-in)][0x8020000005ac8514]>"
			t := strings.Split(line, "[")
			if len(t) < 2 {
				continue
			}
			name := strings.Split(t[1], "]")[0]
			devs = append(devs, image.Device{Name: name, ID: name})
		} else {
			continue
		}
	}
	return image.NumberDevices(devs)
}

// Open returns a stream that runs imagesnap to capture a single frame from
// dev, after a one second warmup.
func (b *Backend) Open(dev image.Device, format image.Format) (image.Stream, error) {
	if dev.ID == "" {
		return nil, fmt.Errorf("device %q has no id", dev.Name)
	}
	b.logger.Debugw("imagesnap ignores the requested format", "format", format.String())
	return image.NewToolStream(b.logger, "imagesnap", func(out string) []string {
		return []string{"-q", "-w", "1", "-d", dev.ID, out}
	}, errInstallHint)
}
