// Command plantcam takes a snapshot with a camera, crops it, saves it as a
// timestamped JPEG and uploads it to an S3 compatible object store.
//
// Examples:
//
//	# Write a default configuration to edit.
//	plantcam init-config
//
//	# List the cameras the configured backend can see.
//	plantcam devices
//
//	# Take one snapshot, as run from a systemd timer or cron.
//	plantcam -config /etc/plantcam/config.toml snap
//
//	# Take a snapshot every 10 minutes until interrupted.
//	plantcam schedule -every 10m
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/plantcam/plantcam"
	"github.com/plantcam/plantcam/image"
	"github.com/plantcam/plantcam/pipeline"
)

// usageError is returned for bad command line arguments.
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

func onUsageError(c *cli.Context, err error, isSubcommand bool) error {
	return usageError{err.Error()}
}

func main() {
	os.Exit(main0(os.Args))
}

func main0(args []string) int {
	var logger *zap.SugaredLogger
	cleanup := func() {}

	app := &cli.App{
		Name:  "plantcam",
		Usage: "take a cropped camera snapshot and upload it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.toml", Usage: "path of the TOML configuration file"},
			&cli.BoolFlag{Name: "verbose", Usage: "print debug output"},
			&cli.StringFlag{Name: "log-file", Usage: "if set, also log to this file, rotated by size"},
		},
		Before: func(c *cli.Context) error {
			logger, cleanup = plantcam.NewLogger(plantcam.LogOptions{
				Verbose: c.Bool("verbose"),
				File:    c.String("log-file"),
			})
			return nil
		},
		After: func(c *cli.Context) error {
			cleanup()
			return nil
		},
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			return snap(c, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "snap",
				Usage: "take one snapshot (default)",
				Action: func(c *cli.Context) error {
					return snap(c, logger)
				},
			},
			{
				Name:  "devices",
				Usage: "list cameras and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backend", Usage: "backend to list devices of, by default the configured one"},
				},
				Action: func(c *cli.Context) error {
					return listDevices(c, logger)
				},
			},
			{
				Name:  "init-config",
				Usage: "write a default configuration file, if none exists",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if err := plantcam.WriteDefault(path); err != nil {
						return err
					}
					fmt.Printf("wrote %s, fill in the r2_* settings before use\n", path)
					return nil
				},
			},
			{
				Name:  "schedule",
				Usage: "take snapshots on a schedule until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "every", Usage: "interval between snapshots, eg 10m"},
					&cli.StringFlag{Name: "cron", Usage: "crontab expression for snapshots, eg \"*/10 6-20 * * *\""},
					&cli.BoolFlag{Name: "immediately", Usage: "also take a snapshot right away"},
				},
				Action: func(c *cli.Context) error {
					return schedule(c, logger)
				},
			},
		},
	}

	for _, cmd := range app.Commands {
		cmd.OnUsageError = onUsageError
	}

	err := app.Run(args)
	if err == nil {
		return 0
	}
	var uerr usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(os.Stderr, "plantcam: %s\n", err)
		return 2
	}
	var serr *plantcam.StageError
	if !errors.As(err, &serr) {
		// Stage errors are logged by the pipeline.
		fmt.Fprintf(os.Stderr, "plantcam: %s\n", err)
	}
	return 1
}

func newRunner(logger *zap.SugaredLogger) *pipeline.Runner {
	return &pipeline.Runner{
		Logger:     logger,
		NewBackend: newBackend,
	}
}

func snap(c *cli.Context, logger *zap.SugaredLogger) error {
	if c.Args().Present() {
		return usageError{fmt.Sprintf("unexpected arguments %q", c.Args().Slice())}
	}
	_, err := newRunner(logger).RunFile(c.Context, c.String("config"))
	return err
}

func listDevices(c *cli.Context, logger *zap.SugaredLogger) error {
	name := c.String("backend")
	if name == "" {
		cfg, err := plantcam.Load(c.String("config"))
		if err != nil {
			name = plantcam.DefaultConfig().CameraBackend
			logger.Debugw("no usable config, using default backend", "backend", name, "error", err)
		} else {
			name = cfg.CameraBackend
		}
	}
	backend, err := newBackend(name, logger)
	if err != nil {
		return usageError{err.Error()}
	}
	devs, err := backend.ListDevices()
	if err != nil {
		return fmt.Errorf("listing devices: %v", err)
	}
	if len(devs) == 0 {
		fmt.Println("no devices found")
		return nil
	}
	for _, dev := range devs {
		fmt.Printf("%d: %s\n", dev.Index, formatDevice(dev))
	}
	return nil
}

func formatDevice(dev image.Device) string {
	if len(dev.Caps) == 0 {
		return dev.Description()
	}
	return fmt.Sprintf("%s (caps: %s)", dev.Description(), image.CapsString(dev))
}

func schedule(c *cli.Context, logger *zap.SugaredLogger) error {
	every := c.Duration("every")
	expr := c.String("cron")
	if (every > 0) == (expr != "") {
		return usageError{"need exactly one of -every or -cron"}
	}
	var def gocron.JobDefinition
	if every > 0 {
		def = gocron.DurationJob(every)
	} else {
		def = gocron.CronJob(expr, false)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("new scheduler: %v", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := c.String("config")
	runner := newRunner(logger)
	task := func() {
		// Each run is independent, configuration and devices are looked up
		// anew. A failed run was logged and does not stop the schedule.
		t0 := time.Now()
		res, err := runner.RunFile(ctx, path)
		if err == nil {
			logger.Infow("scheduled snapshot done", "key", res.Key, "duration", time.Since(t0))
		}
	}
	opts := []gocron.JobOption{gocron.WithSingletonMode(gocron.LimitModeReschedule)}
	if c.Bool("immediately") {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	j, err := s.NewJob(def, gocron.NewTask(task), opts...)
	if err != nil {
		return usageError{fmt.Sprintf("scheduling snapshots: %v", err)}
	}
	s.Start()
	if next, err := j.NextRun(); err == nil {
		logger.Infow("snapshots scheduled", "next", next)
	}

	<-ctx.Done()
	logger.Infow("stopping scheduler")
	return s.Shutdown()
}
