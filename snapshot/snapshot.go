// Package snapshot names and writes snapshot files.
package snapshot

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
)

// timeLayout gives minute resolution. Snapshots taken within the same minute
// with the same prefix share a name, the last one wins.
const timeLayout = "20060102_1504"

// BuildPath returns the path of the snapshot taken at now:
// dir/[prefix-]YYYYMMDD_HHMM.jpg, in the local time of now.
func BuildPath(dir, prefix string, now time.Time) string {
	name := now.Format(timeLayout) + ".jpg"
	if prefix != "" {
		name = prefix + "-" + name
	}
	return filepath.Join(dir, name)
}

// Persist encodes img as JPEG with the given quality and writes it to path,
// creating parent directories as needed. The image is written to a temporary
// file next to path first and renamed into place, an existing file at path is
// replaced.
func Persist(img image.Image, path string, quality int) (rerr error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if rerr != nil {
			os.Remove(tmp)
		}
	}()

	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return multierr.Append(fmt.Errorf("encoding jpeg: %w", err), f.Close())
	}
	if err := f.Chmod(0o644); err != nil {
		return multierr.Append(fmt.Errorf("setting file mode: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming to %s: %w", path, err)
	}
	return nil
}
