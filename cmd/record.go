package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/logging"
	"github.com/smazurov/mediadevice/internal/recorder"
)

const meterWidth = 40

// CreateRecordCmd creates the record command.
func CreateRecordCmd() *cobra.Command {
	var catalogFile string
	var device string
	var duration time.Duration
	var outputRate int
	var channels int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "record [output.wav]",
		Short: "Record a microphone to a WAV file",
		Long: `Starts a capture session on a microphone and writes its sample buffers to a ` +
			`16-bit PCM WAV file, resampling when --rate is given. Stops after --duration or on interrupt.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			initCommandLogging(verbose)
			logger := logging.GetLogger("recorder")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := record(ctx, recordOptions{
				catalogFile: catalogFile,
				device:      device,
				output:      args[0],
				duration:    duration,
				outputRate:  outputRate,
				channels:    channels,
			}); err != nil {
				logger.Error("Recording failed", "error", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Synthetic device catalog (default: built-in catalog)")
	cmd.Flags().StringVarP(&device, "device", "d", "", "Microphone ID, name or catalog key (default: first microphone)")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "Recording length, 0 records until interrupted")
	cmd.Flags().IntVar(&outputRate, "rate", 0, "Output sample rate in Hz (default: capture rate)")
	cmd.Flags().IntVar(&channels, "channels", 0, "Capture channel count (default: device setting)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

type recordOptions struct {
	catalogFile string
	device      string
	output      string
	duration    time.Duration
	outputRate  int
	channels    int
}

func record(ctx context.Context, opts recordOptions) error {
	stack, err := newLocalStack(ctx, opts.catalogFile)
	if err != nil {
		return err
	}
	defer stack.Close()

	h, info, err := stack.pick(opts.device, devices.Microphones)
	if err != nil {
		return err
	}
	defer func() { _ = stack.registry.Release(h) }()

	mic, err := stack.registry.Audio(h)
	if err != nil {
		return err
	}
	if opts.channels > 0 {
		if err := mic.SetChannelCount(opts.channels); err != nil {
			return err
		}
	}
	settings, err := mic.Settings()
	if err != nil {
		return err
	}

	if err := stack.grant(ctx, devices.KindMicrophone); err != nil {
		return err
	}

	rec, err := recorder.Create(opts.output, recorder.Options{
		SampleRate: settings.SampleRate,
		Channels:   settings.ChannelCount,
		OutputRate: opts.outputRate,
		Logger:     logging.GetLogger("recorder"),
	})
	if err != nil {
		return err
	}

	var level atomic.Uint64
	write := rec.Handler()
	handler := func(b delivery.SampleBuffer) {
		write(b)
		level.Store(math.Float64bits(peak(b.Samples)))
	}

	if err := stack.sessions.StartMicrophone(ctx, h, handler); err != nil {
		_ = rec.Close()
		return err
	}

	fmt.Fprintf(os.Stderr, "Recording %s (%d Hz, %d ch) to %s\n",
		info.Name, settings.SampleRate, settings.ChannelCount, opts.output)

	waitCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		showMeter(waitCtx, &level)
	} else {
		<-waitCtx.Done()
	}

	stopErr := stack.sessions.Stop(h)
	closeErr := rec.Close()
	if stopErr != nil {
		return stopErr
	}
	if closeErr != nil {
		return closeErr
	}

	fmt.Fprintf(os.Stderr, "Wrote %s (%s, %d frames)\n", opts.output, rec.Duration().Round(time.Millisecond), rec.Frames())
	return nil
}

// showMeter redraws a peak level bar on the terminal until ctx is done.
func showMeter(ctx context.Context, level *atomic.Uint64) {
	width := meterWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w-20 < width {
		width = max(w-20, 10)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout)
			return
		case <-ticker.C:
			fmt.Fprint(os.Stdout, "\r"+meterLine(math.Float64frombits(level.Load()), width, time.Since(start)))
		}
	}
}

func meterLine(peak float64, width int, elapsed time.Duration) string {
	filled := int(math.Round(math.Min(peak, 1) * float64(width)))
	return fmt.Sprintf("%6.1fs [%s%s] %3.0f%%",
		elapsed.Seconds(), strings.Repeat("#", filled), strings.Repeat(" ", width-filled), peak*100)
}

func peak(samples []float32) float64 {
	var p float64
	for _, s := range samples {
		p = math.Max(p, math.Abs(float64(s)))
	}
	return p
}
