// Package plantcam holds what the snapshot pipeline shares: the run
// configuration, the failure taxonomy, logging setup and temporary storage.
package plantcam

import (
	"fmt"
	"image"
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// Default configuration values.
const (
	DefaultWidth         = 640
	DefaultHeight        = 480
	DefaultFrameRate     = 30
	DefaultOutputDir     = "pictures"
	DefaultJPEGQuality   = 95
	DefaultProjectPrefix = "plant-cam/"
	DefaultRegion        = "auto"
)

// Backends that can be named in camera_backend.
var Backends = []string{"ffmpeg", "gstreamer", "imagesnap", "v4l2"}

// Config is the configuration of a snapshot run. It is loaded once and not
// modified afterwards.
type Config struct {
	CameraID        string `toml:"camera_id"`
	CameraWidth     int    `toml:"camera_width"`
	CameraHeight    int    `toml:"camera_height"`
	CameraFrameRate int    `toml:"camera_frame_rate"`
	CameraBackend   string `toml:"camera_backend"`

	OutputDir    string `toml:"output_dir"`
	OutputPrefix string `toml:"output_prefix"`
	JPEGQuality  int    `toml:"jpeg_quality"`

	CropX      int `toml:"crop_x"`
	CropY      int `toml:"crop_y"`
	CropWidth  int `toml:"crop_width"`  // Zero means up to the right edge of the frame.
	CropHeight int `toml:"crop_height"` // Zero means up to the bottom edge of the frame.

	// If set, a run fails when no device matches CameraID instead of using
	// the first device.
	NoDefaultCamera bool `toml:"no_default_camera"`

	R2AccountID       string `toml:"r2_account_id"`
	R2BucketName      string `toml:"r2_bucket_name"`
	R2AccessKeyID     string `toml:"r2_access_key_id"`
	R2SecretAccessKey string `toml:"r2_secret_access_key"`
	R2ProjectPrefix   string `toml:"r2_project_prefix"`
	R2Endpoint        string `toml:"r2_endpoint"` // Overrides the endpoint derived from R2AccountID.
	R2Region          string `toml:"r2_region"`

	// Older config files misspell the account id key.
	LegacyAccountID string `toml:"r2_accound_id,omitempty"`
}

// DefaultConfig returns the configuration used for keys absent from a config
// file.
func DefaultConfig() Config {
	backend := "v4l2"
	if runtime.GOOS == "darwin" {
		backend = "imagesnap"
	}
	return Config{
		CameraWidth:     DefaultWidth,
		CameraHeight:    DefaultHeight,
		CameraFrameRate: DefaultFrameRate,
		CameraBackend:   backend,
		OutputDir:       DefaultOutputDir,
		JPEGQuality:     DefaultJPEGQuality,
		NoDefaultCamera: true,
		R2ProjectPrefix: DefaultProjectPrefix,
		R2Region:        DefaultRegion,
	}
}

// Load reads the TOML file at path on top of DefaultConfig, and validates the
// result. All errors wrap ErrConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: parsing %s: %v", ErrConfig, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrConfig, path, strings.Join(keys, ", "))
	}
	if cfg.R2AccountID == "" {
		cfg.R2AccountID = cfg.LegacyAccountID
	}
	cfg.LegacyAccountID = ""
	if cfg.CropWidth == 0 {
		cfg.CropWidth = cfg.CameraWidth - cfg.CropX
	}
	if cfg.CropHeight == 0 {
		cfg.CropHeight = cfg.CameraHeight - cfg.CropY
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	return cfg, nil
}

// Validate checks the configuration, returning all problems found.
func (c Config) Validate() error {
	var err error
	fail := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		fail("camera resolution must be positive, got %dx%d", c.CameraWidth, c.CameraHeight)
	}
	if c.CameraFrameRate <= 0 {
		fail("camera_frame_rate must be positive, got %d", c.CameraFrameRate)
	}
	if !knownBackend(c.CameraBackend) {
		fail("unknown camera_backend %q, need one of: %s", c.CameraBackend, strings.Join(Backends, ", "))
	}
	// The origin is checked before the size: a size derived from an origin
	// outside the frame is not positive.
	switch {
	case c.CropX < 0 || c.CropY < 0:
		fail("crop origin (%d,%d) must not be negative", c.CropX, c.CropY)
	case c.CropX >= c.CameraWidth || c.CropY >= c.CameraHeight:
		fail("%w: crop origin (%d,%d) outside %dx%d frame", ErrCropBounds, c.CropX, c.CropY, c.CameraWidth, c.CameraHeight)
	case c.CropWidth <= 0 || c.CropHeight <= 0:
		fail("crop rectangle (%d,%d,%d,%d) must have a positive size", c.CropX, c.CropY, c.CropWidth, c.CropHeight)
	case c.CropX+c.CropWidth > c.CameraWidth || c.CropY+c.CropHeight > c.CameraHeight:
		fail("%w: crop rectangle (%d,%d,%d,%d) exceeds %dx%d frame", ErrCropBounds, c.CropX, c.CropY, c.CropWidth, c.CropHeight, c.CameraWidth, c.CameraHeight)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		fail("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.OutputDir == "" {
		fail("output_dir must not be empty")
	}
	if strings.ContainsRune(c.OutputPrefix, os.PathSeparator) {
		fail("output_prefix %q must not contain a path separator", c.OutputPrefix)
	}
	if c.R2BucketName == "" {
		fail("r2_bucket_name is required")
	}
	if c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" {
		fail("r2_access_key_id and r2_secret_access_key are required")
	}
	if c.R2AccountID == "" && c.R2Endpoint == "" {
		fail("one of r2_account_id or r2_endpoint is required")
	}
	return err
}

func knownBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// CropRect returns the crop rectangle in frame coordinates.
func (c Config) CropRect() image.Rectangle {
	return image.Rect(c.CropX, c.CropY, c.CropX+c.CropWidth, c.CropY+c.CropHeight)
}

// Endpoint returns the object store endpoint URL.
func (c Config) Endpoint() string {
	if c.R2Endpoint != "" {
		return c.R2Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// MarshalLogObject logs the configuration without the secret key.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("camera_id", c.CameraID)
	enc.AddString("camera_backend", c.CameraBackend)
	enc.AddString("resolution", fmt.Sprintf("%dx%d@%d", c.CameraWidth, c.CameraHeight, c.CameraFrameRate))
	enc.AddString("crop", c.CropRect().String())
	enc.AddString("output_dir", c.OutputDir)
	enc.AddString("output_prefix", c.OutputPrefix)
	enc.AddInt("jpeg_quality", c.JPEGQuality)
	enc.AddBool("no_default_camera", c.NoDefaultCamera)
	enc.AddString("endpoint", c.Endpoint())
	enc.AddString("region", c.R2Region)
	enc.AddString("bucket", c.R2BucketName)
	enc.AddString("access_key_id", c.R2AccessKeyID)
	enc.AddString("project_prefix", c.R2ProjectPrefix)
	return nil
}

var _ zapcore.ObjectMarshaler = Config{}

// WriteDefault writes DefaultConfig as TOML to path. It fails if path already
// exists.
func WriteDefault(path string) (rerr error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %v", err)
	}
	defer func() {
		rerr = multierr.Append(rerr, f.Close())
	}()
	cfg := DefaultConfig()
	cfg.CropWidth = cfg.CameraWidth
	cfg.CropHeight = cfg.CameraHeight
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("writing config file: %v", err)
	}
	return nil
}
