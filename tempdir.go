package plantcam

import (
	"os"
)

// TempDir returns either a temporary directory in /dev/shm (if it exists), or
// otherwise in the OS default temporary directory. Capture backends that run
// an external tool let it write the frame there.
func TempDir() (string, error) {
	// Frames are small and short-lived, prefer memory backed storage. Check
	// that /dev/shm exists first, don't want to accidentally create a
	// directory in /dev when running as root.
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		dir, err := os.MkdirTemp("/dev/shm", "plantcam")
		if err == nil {
			return dir, nil
		}
	}
	return os.MkdirTemp("", "plantcam")
}
