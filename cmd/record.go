// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	recordDuration int
	recordReplay   string
)

var recordCmd = &cobra.Command{
	Use:   "record <output.itf>",
	Short: "Record the raw link stream to a capture file",
	Long: `Write every byte read from the link to a capture file, unchanged, while
tracking the frame stream so losses are reported as they happen.

Recording stops after --duration seconds, or on Ctrl+C when no duration is
given. The file can be decoded afterwards with any offline command.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().IntVar(&recordDuration, "duration", 0, "Recording length in seconds (0 = until interrupted)")
	recordCmd.Flags().StringVar(&recordReplay, "replay", "", "Record from a capture file played back in real time")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(recordReplay)
	if err != nil {
		return err
	}
	defer conn.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "itekstat - Record\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Output: %s\n", args[0])
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	var deadline <-chan time.Time
	if recordDuration > 0 {
		timer := time.NewTimer(time.Duration(recordDuration) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	tracker := newFrameTracker()
	var written int64
	var writeErr error
	feed := func(data []byte) {
		if writeErr != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			writeErr = err
			return
		}
		written += int64(len(data))
		tracker.Feed(data, func(ev linkEvent) {
			switch {
			case ev.syncLost:
				logger.Warn().Int64("written", written).Msg("frame sync lost")
			case ev.gap != nil:
				logger.Warn().
					Int("after_index", ev.gap.StartIndex).
					Int("missing", ev.gap.Missing).
					Bool("ambiguous", ev.gap.Ambiguous).
					Msg("frames missing")
			}
		})
	}

	dataChan, errChan := readLink(ctx, conn)
loop:
	for {
		select {
		case data := <-dataChan:
			feed(data)
			if writeErr != nil {
				break loop
			}
		case err := <-errChan:
			drainLink(dataChan, feed)
			if !isEndOfStream(err) {
				logger.Error().Err(err).Msg("read error")
			}
			break loop
		case <-deadline:
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	if writeErr != nil {
		return fmt.Errorf("failed to write capture: %w", writeErr)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}

	stats := tracker.stats
	fmt.Fprintf(out, "Wrote %d bytes (%.1f s of data)\n", written,
		float64(stats.LogicalFrames)*itek.SamplePeriodMillis/1000)
	fmt.Fprint(out, stats.String())
	return nil
}
