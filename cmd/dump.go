// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	dumpRaw     bool
	dumpInvalid bool
	dumpLimit   int
)

var dumpCmd = &cobra.Command{
	Use:   "dump <capture.itf>",
	Short: "Print the frames of a capture",
	Long: `Print every valid frame of a capture with its byte offset, logical index
and decoded channels. Gaps in the record counter are printed between frames.

--raw prints each block's marker and raw sample bytes instead of decoded values.
--invalid also reports every run of skipped bytes, with the checks that the
frame candidate at its start failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().BoolVar(&dumpRaw, "raw", false, "Print raw block bytes")
	dumpCmd.Flags().BoolVar(&dumpInvalid, "invalid", false, "Report skipped byte runs")
	dumpCmd.Flags().IntVar(&dumpLimit, "limit", 0, "Stop after this many frames (0 = no limit)")
}

func runDump(cmd *cobra.Command, args []string) error {
	buf, err := itek.ReadCapture(args[0])
	if err != nil {
		return err
	}
	return dumpFrames(cmd.OutOrStdout(), buf)
}

func dumpFrames(out io.Writer, buf []byte) error {
	s := itek.NewScanner(buf)
	r := itek.NewReconciler()
	var prevEnd int64
	frames := 0

	for s.Next() {
		f := s.Frame()
		if dumpInvalid && f.Offset > prevEnd {
			printSkipped(out, buf, prevEnd, f.Offset)
		}
		prevEnd = f.Offset + itek.FrameSize

		index, gap := r.Next(f.Raw.RecordNumber(), f.Offset)
		if gap != nil {
			fmt.Fprintf(out, "--- gap %s\n", gap)
		}

		fmt.Fprintf(out, "Frame %d\n", index)
		if dumpRaw {
			fmt.Fprintf(out, "[@%d]\n%s", f.Offset, itek.FormatFrameRaw(&f.Raw))
		} else {
			fmt.Fprint(out, itek.FormatFrame(&f))
		}
		if errs := itek.ValidateFrame(&f.Raw); len(errs) > 0 {
			fmt.Fprint(out, itek.FormatValidationErrors(errs))
		}

		frames++
		if dumpLimit > 0 && frames >= dumpLimit {
			return nil
		}
	}

	if frames == 0 {
		return itek.ErrNoValidFrame
	}
	if dumpInvalid {
		if end := int64(len(buf)); end > prevEnd {
			fmt.Fprintf(out, "--- %d trailing bytes at %d\n", end-prevEnd, prevEnd)
		}
	}
	return nil
}

// printSkipped reports a run of bytes the scanner stepped over
func printSkipped(out io.Writer, buf []byte, from, to int64) {
	fmt.Fprintf(out, "--- skipped %d bytes at %d\n", to-from, from)
	if int64(len(buf))-from < itek.FrameSize {
		return
	}
	var candidate itek.RawFrame
	copy(candidate[:], buf[from:])
	fmt.Fprint(out, itek.FormatValidationErrors(itek.ValidateFrame(&candidate)))
}
