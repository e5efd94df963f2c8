package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/plantcam/plantcam"
)

// CaptureTimeout bounds how long a capture waits for a frame.
const CaptureTimeout = 10 * time.Second

// ToolStream captures a frame by running an external tool that writes one
// JPEG file into a temporary directory. The directory is watched for the file
// to appear.
type ToolStream struct {
	name        string
	args        []string
	out         string
	tempDir     string
	watcher     *fsnotify.Watcher
	installHint error
	logger      *zap.SugaredLogger
}

// Check that ToolStream implements interface Stream.
var _ Stream = (*ToolStream)(nil)

// NewToolStream makes a stream that runs executable name with the arguments
// returned by args. The tool must write its frame to the path passed to args.
// If the executable is missing, installHint is returned.
//
// Callers must call Close to clean up.
func NewToolStream(logger *zap.SugaredLogger, name string, args func(out string) []string, installHint error) (stream *ToolStream, rerr error) {
	if _, err := exec.LookPath(name); err != nil {
		if installHint != nil {
			err = installHint
		}
		return nil, fmt.Errorf("looking up %s: %w", name, err)
	}

	s := &ToolStream{name: name, installHint: installHint, logger: logger}

	// Ensure cleanup in case of failure.
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	tempDir, err := plantcam.TempDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %w", err)
	}
	s.tempDir = tempDir
	s.out = filepath.Join(tempDir, "frame.jpg")
	s.args = args(s.out)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %w", err)
	}
	s.watcher = watcher
	if err := watcher.Add(s.tempDir); err != nil {
		return nil, fmt.Errorf("registering file change watcher for temp dir: %w", err)
	}
	logger.Debugw("tool stream ready", "tool", name, "tempdir", tempDir)
	return s, nil
}

// Capture runs the tool and returns the frame it wrote.
func (s *ToolStream) Capture(ctx context.Context) (image.Image, error) {
	if err := os.Remove(s.out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, CaptureTimeout)
	defer cancel()

	s.logger.Debugw("starting capture tool", "cmd", s.name+" "+strings.Join(s.args, " "))
	cmd := exec.CommandContext(ctx, s.name, s.args...)
	cmd.Dir = s.tempDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) && s.installHint != nil {
			err = s.installHint
		}
		return nil, fmt.Errorf("starting %s: %w", s.name, err)
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				cancel()
				<-done
				return nil, errors.New("file change watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || ev.Name != s.out {
				continue
			}
			img, err := decodeFile(ev.Name)
			if err != nil {
				s.logger.Debugw("decoding frame, may be partially written", "file", ev.Name, "error", err)
				continue
			}
			cancel()
			<-done
			return img, nil

		case err, ok := <-s.watcher.Errors:
			cancel()
			<-done
			if !ok {
				return nil, errors.New("file change watcher closed")
			}
			return nil, fmt.Errorf("watching for frame: %w", err)

		case err := <-done:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("waiting for %s: %w", s.name, ctxErr)
			}
			if err != nil {
				return nil, fmt.Errorf("%s: %v: %s", s.name, err, strings.TrimSpace(stderr.String()))
			}
			// The tool may have finished before its write was seen.
			img, err := decodeFile(s.out)
			if err != nil {
				return nil, fmt.Errorf("%s exited without a readable frame: %w", s.name, err)
			}
			return img, nil
		}
	}
}

func decodeFile(path string) (image.Image, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeMJPEG(buf)
}

// Close removes the temporary directory.
func (s *ToolStream) Close() error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.tempDir != "" {
		return os.RemoveAll(s.tempDir)
	}
	return nil
}
