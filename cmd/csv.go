// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/export"
	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	csvMissingValue string
	csvRaw          bool
)

var csvCmd = &cobra.Command{
	Use:   "csv <capture.itf> [output.csv]",
	Short: "Convert a capture to CSV",
	Long: `Convert a capture to CSV with one row per channel followed by a row of
parallel port data. Each column is one logical frame.

When a companion .itf.ita file exists the samples are scaled to microvolts
using the gain of the card driving each channel. Missing frames are written
as --missing-value (empty by default).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCSV,
}

func init() {
	rootCmd.AddCommand(csvCmd)
	csvCmd.Flags().StringVar(&csvMissingValue, "missing-value", "", "Value written for missing frames")
	csvCmd.Flags().BoolVar(&csvRaw, "raw", false, "Write raw counts even when card info is available")
}

func runCSV(cmd *cobra.Command, args []string) error {
	order, err := cardOrder()
	if err != nil {
		return err
	}
	chanMap, _ := itek.ChannelMap(order)

	rec, cards, err := loadCapture(args[0])
	if err != nil {
		return err
	}

	opts := export.CSVOptions{MissingValue: csvMissingValue}
	if !csvRaw {
		opts.Scales = export.ChannelScales(cards, chanMap)
	}

	var out io.Writer = cmd.OutOrStdout()
	if len(args) == 2 {
		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := export.WriteCSV(out, rec, opts); err != nil {
		return err
	}
	logger.Info().Int("frames", rec.Len()).Int("missing", rec.MissingFrames).Msg("wrote CSV")
	return nil
}
