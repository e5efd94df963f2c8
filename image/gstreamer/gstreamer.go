// Package gstreamer implements capturing a frame with the gstreamer tools.
package gstreamer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/plantcam/plantcam/image"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y gstreamer1.0-tools gstreamer1.0-plugins-good gstreamer1.0-plugins-base gstreamer1.0-plugins-base-apps")

// Backend captures frames using gst-launch-1.0.
type Backend struct {
	logger *zap.SugaredLogger
}

// Check that Backend implements interface Backend.
var _ image.Backend = (*Backend)(nil)

// New returns a new gstreamer backend.
func New(logger *zap.SugaredLogger) *Backend {
	return &Backend{logger}
}

type device struct {
	ID          string
	Name        string
	DeviceClass string
	RawCaps     []string
	Caps        []image.DeviceCap
	inCapMode   bool
}

var widthRegexp = regexp.MustCompile(`width=(?:\(int\))?([0-9]+)[^0-9]`)
var heightRegexp = regexp.MustCompile(`height=(?:\(int\))?([0-9]+)[^0-9]`)
var framerateRegexp = regexp.MustCompile(`framerate=(?:\(fraction\))?([0-9]+)[^0-9]`)

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// ListDevices returns a list of devices that can be used for recording.
func (b *Backend) ListDevices() ([]image.Device, error) {
	cmd := exec.Command("gst-device-monitor-1.0", "Video/Source")
	buf, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("listing devices using gst-device-monitor-1.0: %v", err)
	}
	return parseDevices(buf)
}

func parseDevices(buf []byte) ([]image.Device, error) {
	var r []device
	var d *device
	b := bufio.NewScanner(bytes.NewReader(buf))
	for b.Scan() {
		s := strings.TrimSpace(b.Text())
		if s == "" {
			continue
		}
		if s == "Device found:" {
			if d != nil {
				r = append(r, *d)
			}
			d = &device{RawCaps: []string{}, Caps: []image.DeviceCap{}}
			continue
		}

		if d == nil {
			continue
		}

		if strings.HasPrefix(s, "name  :") {
			d.Name = strings.TrimSpace(strings.SplitN(s, ":", 2)[1])
			continue
		}
		if strings.HasPrefix(s, "class :") {
			d.DeviceClass = strings.TrimSpace(strings.SplitN(s, ":", 2)[1])
			continue
		}
		if strings.HasPrefix(s, "caps  :") {
			cap := strings.TrimSpace(strings.SplitN(s, ":", 2)[1])
			d.RawCaps = append(d.RawCaps, cap)
			d.inCapMode = true
			continue
		}
		if strings.HasPrefix(s, "properties:") {
			d.inCapMode = false
			continue
		}
		if d.inCapMode {
			d.RawCaps = append(d.RawCaps, s)
		}
		if strings.HasPrefix(s, "device.path =") || strings.HasPrefix(s, "api.v4l2.path =") {
			d.ID = strings.TrimSpace(strings.SplitN(s, "=", 2)[1])
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}

	if d != nil && d.ID != "" {
		r = append(r, *d)
	}

	devs := []image.Device{}
	for _, d := range r {
		if d.DeviceClass != "Video/Source" || d.ID == "" {
			continue
		}
		for _, rc := range d.RawCaps {
			var typ string
			switch {
			case strings.HasPrefix(rc, "image/jpeg"):
				typ = "image/jpeg"
			case strings.HasPrefix(rc, "video/x-raw"):
				typ = "video/x-raw"
			default:
				continue
			}
			mw := widthRegexp.FindStringSubmatch(rc)
			mh := heightRegexp.FindStringSubmatch(rc)
			mf := framerateRegexp.FindStringSubmatch(rc)
			if mw == nil || mh == nil || mf == nil {
				continue
			}
			width, werr := strconv.ParseInt(mw[1], 10, 32)
			height, herr := strconv.ParseInt(mh[1], 10, 32)
			framerate, ferr := strconv.ParseInt(mf[1], 10, 32)
			if werr != nil || herr != nil || ferr != nil {
				continue
			}
			if width != 0 && height != 0 && framerate != 0 {
				d.Caps = append(d.Caps, image.DeviceCap{
					Type:      typ,
					Width:     int(width),
					Height:    int(height),
					Framerate: int(framerate),
				})
			}
		}

		distance := func(a image.DeviceCap) int {
			return abs(a.Width-640)*abs(a.Height-480) + abs(a.Width-640) + abs(a.Height-480)
		}

		sort.SliceStable(d.Caps, func(i, j int) bool {
			return distance(d.Caps[i]) < distance(d.Caps[j])
		})

		devs = append(devs, image.Device{
			ID:   d.ID,
			Name: d.Name,
			Caps: d.Caps,
		})
	}
	return image.NumberDevices(devs), nil
}

// Open returns a stream that runs gst-launch-1.0 to capture a single motion
// JPEG frame from dev.
func (b *Backend) Open(dev image.Device, format image.Format) (image.Stream, error) {
	if !dev.Supports(format) {
		return nil, fmt.Errorf("device %s does not support %s (caps: %s)", dev.ID, format, image.CapsString(dev))
	}
	return image.NewToolStream(b.logger, "gst-launch-1.0", func(out string) []string {
		return args(dev.ID, format, out)
	}, errInstallHint)
}

func args(device string, f image.Format, out string) []string {
	return []string{
		"-q",
		"v4l2src",
		"device=" + device,
		"num-buffers=1",
		"!",
		fmt.Sprintf("image/jpeg,width=%d,height=%d,framerate=%d/1", f.Width, f.Height, f.FrameRate),
		"!",
		"filesink",
		"location=" + out,
	}
}
