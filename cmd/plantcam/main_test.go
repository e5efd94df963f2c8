package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plantcam/plantcam"
	"github.com/plantcam/plantcam/image"
)

func TestNewBackend(t *testing.T) {
	logger := zap.NewNop().Sugar()
	for _, name := range []string{"ffmpeg", "gstreamer", "imagesnap"} {
		b, err := newBackend(name, logger)
		require.NoError(t, err, name)
		require.NotNil(t, b, name)
	}
	_, err := newBackend("webcam", logger)
	require.ErrorContains(t, err, `unknown camera backend "webcam"`)
}

func TestFormatDevice(t *testing.T) {
	d := image.Device{Name: "C920", ID: "/dev/video2"}
	require.Equal(t, "C920 (/dev/video2)", formatDevice(d))
	d.Caps = []image.DeviceCap{{Type: "image/jpeg", Width: 640, Height: 480, Framerate: 30}}
	require.Equal(t, "C920 (/dev/video2) (caps: "+image.CapsString(d)+")", formatDevice(d))
}

func TestMain0(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.Equal(t, 0, main0([]string{"plantcam", "-config", path, "init-config"}))
	// Written, but not usable until credentials are filled in.
	_, err := plantcam.Load(path)
	require.ErrorIs(t, err, plantcam.ErrConfig)
	require.Equal(t, 1, main0([]string{"plantcam", "-config", path, "snap"}))

	// Refuses to overwrite.
	require.Equal(t, 1, main0([]string{"plantcam", "-config", path, "init-config"}))

	require.Equal(t, 1, main0([]string{"plantcam", "-config", filepath.Join(dir, "missing.toml"), "snap"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-config", path, "snap", "extra"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-config", path, "schedule"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-config", path, "schedule", "-every", "1m", "-cron", "* * * * *"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-config", path, "devices", "-backend", "webcam"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-no-such-flag"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-config", path, "schedule", "-no-such-flag"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-config", path, "schedule", "-every", "xyz"}))
	require.Equal(t, 2, main0([]string{"plantcam", "-config", path, "devices", "-no-such-flag"}))

	_, err = os.Stat(filepath.Join(dir, "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
