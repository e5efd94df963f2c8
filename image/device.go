package image

import (
	"fmt"
	"strings"
)

// DeviceCap describes a capability of a device.
type DeviceCap struct {
	Type      string // "video/x-raw", "image/jpeg" or "mjpeg"
	Width     int
	Height    int
	Framerate int
}

func (c DeviceCap) String() string {
	return fmt.Sprintf("%dx%d@%dfps", c.Width, c.Height, c.Framerate)
}

// Device is a camera device capable of recording images.
//
// Index is the position of the device in the list it was returned in, and is
// only meaningful for that list.
type Device struct {
	Index int
	Name  string
	ID    string
	Caps  []DeviceCap // May be empty if the backend cannot tell.
}

// Description returns the text that is matched against a configured camera
// id.
func (d Device) Description() string {
	if d.ID == "" || d.ID == d.Name {
		return d.Name
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// Supports returns whether the device can deliver motion JPEG frames in
// format. Devices without known caps are assumed to support any format, the
// backend will find out when opening.
func (d Device) Supports(f Format) bool {
	if len(d.Caps) == 0 {
		return true
	}
	for _, c := range d.Caps {
		if c.Type != "" && c.Type != "image/jpeg" && c.Type != "mjpeg" {
			continue
		}
		if c.Width == f.Width && c.Height == f.Height && (c.Framerate == 0 || f.FrameRate == 0 || c.Framerate >= f.FrameRate) {
			return true
		}
	}
	return false
}

// Format is the stream format requested when opening a device.
type Format struct {
	Width     int
	Height    int
	FrameRate int
}

func (f Format) String() string {
	return fmt.Sprintf("mjpeg %dx%d@%dfps", f.Width, f.Height, f.FrameRate)
}

// NumberDevices sets Index of each device to its position in devs, and
// returns devs. Backends call it before returning a list.
func NumberDevices(devs []Device) []Device {
	for i := range devs {
		devs[i].Index = i
	}
	return devs
}

// CapsString returns the caps of d as a space separated list.
func CapsString(d Device) string {
	l := make([]string, len(d.Caps))
	for i, c := range d.Caps {
		l[i] = c.String()
	}
	return strings.Join(l, " ")
}
