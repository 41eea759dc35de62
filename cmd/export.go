// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/export"
	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	exportAll          bool
	exportChannelNames string
	exportCompression  string
)

var exportCmd = &cobra.Command{
	Use:   "export <capture.itf> <output.itkc>",
	Short: "Convert a capture to a compressed CBOR container",
	Long: `Convert a capture and its .itf.ita card info into a single container file.

The container holds one dataset per channel (channel_XXX) with the
scale_factor, gain, lpf and on attributes of its card, plus the parallel_port,
error_flags, status_flags, tr_register and is_missing columns. Root attributes
record samples_per_second, the itekstat version and a capture id.

Channels on cards that are switched off are skipped unless --all is given.
Without card info every channel is exported, the card attributes are null
and scale_factor is 1.

--channel-names "1:biceps,2:triceps" adds aliases for numbered channels.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export channels even when their card is off")
	exportCmd.Flags().StringVar(&exportChannelNames, "channel-names", "", "Channel aliases as num:name,num:name")
	exportCmd.Flags().StringVar(&exportCompression, "compress", "", "Compression: zstd, gzip or none (default from config)")
}

func runExport(cmd *cobra.Command, args []string) error {
	order, err := cardOrder()
	if err != nil {
		return err
	}
	names, err := itek.ParseChannelNames(exportChannelNames)
	if err != nil {
		return fmt.Errorf("didn't understand --channel-names: %w", err)
	}
	compression := exportCompression
	if compression == "" {
		compression = cfg.Export.Compression
	}
	if !cmd.Flags().Changed("all") && cfg.Export.AllChannels {
		exportAll = true
	}

	rec, cards, err := loadCapture(args[0])
	if err != nil {
		return err
	}

	c, err := export.BuildContainer(rec, export.ContainerOptions{
		Cards:       cards,
		CardOrder:   order,
		AllChannels: exportAll,
		Names:       names,
		Source:      args[0],
		Version:     Version,
	})
	if err != nil {
		return err
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := export.WriteContainer(f, c, compression); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info().
		Str("output", args[1]).
		Str("capture_id", c.CaptureID).
		Int("channels", len(c.Channels)).
		Str("compression", compression).
		Msg("wrote container")
	return nil
}
