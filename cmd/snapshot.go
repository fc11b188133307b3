package cmd

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var catalogFile string
	var device string
	var facing string
	var orientation string
	var zoom float32
	var torch bool
	var timeout time.Duration
	var verbose bool

	cmd := &cobra.Command{
		Use:   "snapshot [output.png]",
		Short: "Capture a photo from a camera",
		Long: `Starts a camera session, captures one photo at the camera's photo resolution ` +
			`and writes it as PNG.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			initCommandLogging(verbose)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := snapshot(ctx, snapshotOptions{
				catalogFile: catalogFile,
				device:      device,
				facing:      facing,
				orientation: orientation,
				zoom:        zoom,
				torch:       torch,
				output:      args[0],
			}); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Synthetic device catalog (default: built-in catalog)")
	cmd.Flags().StringVarP(&device, "device", "d", "", "Camera ID, name or catalog key")
	cmd.Flags().StringVar(&facing, "facing", "rear", "Camera to use when --device is not given (front, rear)")
	cmd.Flags().StringVar(&orientation, "orientation", "", "Output orientation (portrait, portrait_upside_down, landscape_left, landscape_right)")
	cmd.Flags().Float32Var(&zoom, "zoom", 0, "Zoom ratio, clamped to the camera's range")
	cmd.Flags().BoolVar(&torch, "torch", false, "Light the torch while capturing")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Give up if no photo arrives in time")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

type snapshotOptions struct {
	catalogFile string
	device      string
	facing      string
	orientation string
	zoom        float32
	torch       bool
	output      string
}

func snapshot(ctx context.Context, opts snapshotOptions) error {
	criteria := []devices.Criterion{devices.Cameras}
	if opts.device == "" {
		switch opts.facing {
		case "front":
			criteria = append(criteria, devices.FrontCamera)
		case "rear", "":
			criteria = append(criteria, devices.RearCamera)
		default:
			return fmt.Errorf("unknown facing %q", opts.facing)
		}
	}

	stack, err := newLocalStack(ctx, opts.catalogFile)
	if err != nil {
		return err
	}
	defer stack.Close()

	h, info, err := stack.pick(opts.device, criteria...)
	if err != nil {
		return err
	}
	defer func() { _ = stack.registry.Release(h) }()

	if err := configureCamera(stack.registry, h, opts); err != nil {
		return err
	}
	if err := stack.grant(ctx, devices.KindCamera); err != nil {
		return err
	}

	// Previews are discarded; the session only has to run for the photo.
	if err := stack.sessions.StartCamera(ctx, h, func(delivery.Frame) {}); err != nil {
		return err
	}
	defer func() { _ = stack.sessions.Stop(h) }()

	photos := make(chan delivery.Frame, 1)
	if err := stack.sessions.CapturePhoto(h, func(f delivery.Frame) {
		select {
		case photos <- f.Clone():
		default:
		}
	}); err != nil {
		return err
	}

	var photo delivery.Frame
	select {
	case photo = <-photos:
	case <-ctx.Done():
		return fmt.Errorf("waiting for photo from %s: %w", info.Name, ctx.Err())
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, photo.Image()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode photo: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Captured %dx%d photo from %s to %s\n", photo.Width, photo.Height, info.Name, opts.output)
	return nil
}

func configureCamera(reg *devices.Registry, h devices.Handle, opts snapshotOptions) error {
	cam, err := reg.Camera(h)
	if err != nil {
		return err
	}
	if opts.orientation != "" {
		o, err := devices.ParseOrientation(opts.orientation)
		if err != nil {
			return err
		}
		if err := cam.SetOrientation(o); err != nil {
			return err
		}
	}
	if opts.zoom > 0 {
		if err := cam.SetZoomRatio(opts.zoom); err != nil {
			return err
		}
	}
	if opts.torch {
		if err := cam.SetTorchEnabled(true); err != nil {
			return err
		}
	}
	return nil
}
