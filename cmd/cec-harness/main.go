package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	harness "github.com/eliottness/cec-harness"
)

var (
	flagLogical  int
	flagPhysical string
	flagTimeout  time.Duration
	flagDebug    bool
)

func main() {
	root := &cobra.Command{
		Use:   "cec-harness",
		Short: "Drive a CEC adapter for HDMI compliance checks",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(flagDebug)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().IntVar(&flagLogical, "logical", int(harness.AddrPlayback1), "logical address to bind the adapter to (0-15)")
	root.PersistentFlags().StringVar(&flagPhysical, "physical", "1.0.0.0", "physical address to bind the adapter to")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "expectation timeout (0 uses the configured default)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug output")

	root.AddCommand(monitorCmd(), sendCmd(), expectCmd(), replayCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	lvl := slog.LevelInfo
	if debug {
		lvl = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func newSession(ctx context.Context) (*harness.CecTestHarness, error) {
	cfg, err := harness.LoadConfig()
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Debug = true
	}

	physical, err := harness.ParsePhysicalAddress(flagPhysical)
	if err != nil {
		return nil, err
	}
	logical := harness.LogicalAddress(flagLogical)
	if !logical.Valid() {
		return nil, fmt.Errorf("invalid logical address %d", flagLogical)
	}

	h, err := harness.NewHarness(cfg, logical, physical)
	if err != nil {
		return nil, err
	}
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Print decoded bus traffic until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			h, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer h.KillCecProcess()

			err = h.Follow(ctx, func(m harness.Message) {
				fmt.Printf("%s  %s\n", m.At.Format("15:04:05.000"), m)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <frame>",
		Short: "Transmit a raw frame, e.g. 40:8f",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			codec, err := harness.NewCodec("")
			if err != nil {
				return err
			}
			m, err := codec.Decode(args[0])
			if err != nil {
				return err
			}

			h, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer h.KillCecProcess()

			return h.SendMessage(m)
		},
	}
}

func expectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expect <opcode>",
		Short: "Block until a frame with the given opcode appears, e.g. 0x84",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := strconv.ParseUint(args[0], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid opcode %q: %w", args[0], err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			h, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer h.KillCecProcess()

			m, err := h.CheckExpectedOutput(ctx, harness.Opcode(op), flagTimeout)
			if err != nil {
				return err
			}
			fmt.Println(m)
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <dir>",
		Short: "Print the frames recorded in a traffic record directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := harness.OpenRecorder(args[0])
			if err != nil {
				return err
			}
			defer rec.Close()

			return rec.Replay(func(m harness.Message) error {
				fmt.Printf("%s  %s\n", m.At.Format("15:04:05.000"), m)
				return nil
			})
		},
	}
}
