// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/analysis"
	"github.com/Thermoquad/itekstat/pkg/itek"
)

var clipChannels string

var clipStatsCmd = &cobra.Command{
	Use:   "clip_stats <capture.itf>...",
	Short: "Report the share of clipped samples per channel",
	Long: `Report, for each capture and channel, the percentage of samples that sit at
either rail of the 24-bit converter. Missing frames are not counted.

--channels selects the channels: "on" (channels whose card is on, or all
channels without card info), "all", or a comma separated list.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClipStats,
}

func init() {
	rootCmd.AddCommand(clipStatsCmd)
	clipStatsCmd.Flags().StringVar(&clipChannels, "channels", "on", "Channels to report: on, all, or a list")
}

func runClipStats(cmd *cobra.Command, args []string) error {
	order, err := cardOrder()
	if err != nil {
		return err
	}
	chanMap, _ := itek.ChannelMap(order)
	sel, err := analysis.ParseChannelSelection(clipChannels)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 1, '\t', 0)
	fmt.Fprintln(tw, "filename\tchannel\tpercent_clipped")
	for _, path := range args {
		rec, cards, err := loadCapture(path)
		if err != nil {
			return err
		}
		for _, st := range analysis.ClipStats(rec, sel.Resolve(cards, chanMap)) {
			fmt.Fprintf(tw, "%s\t%d\t%.4f\n", path, st.Channel, st.Percent)
		}
	}
	return tw.Flush()
}
