package image

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/plantcam/plantcam"
)

// Select returns the position in devs of the first device whose description
// contains id, ignoring case. Enumeration order is whatever the driver
// returned, so with several matching devices the first one listed wins.
//
// If no device matches and strict is set, Select returns an error wrapping
// plantcam.ErrDeviceNotFound. Otherwise it logs a warning and returns 0, even
// if devs is empty.
func Select(devs []Device, id string, strict bool, logger *zap.SugaredLogger) (int, error) {
	lid := strings.ToLower(id)
	for i, d := range devs {
		if strings.Contains(strings.ToLower(d.Description()), lid) {
			logger.Infow("using camera", "index", i, "name", d.Name, "id", d.ID)
			return i, nil
		}
	}
	if strict {
		return 0, fmt.Errorf("%w: no camera matching %q among %d devices", plantcam.ErrDeviceNotFound, id, len(devs))
	}
	logger.Warnw("could not find camera, using camera with index 0", "camera_id", id, "devices", len(devs))
	return 0, nil
}
