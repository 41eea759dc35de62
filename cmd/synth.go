// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	synthFrames    int
	synthStart     uint8
	synthDropRate  float64
	synthJunkRate  float64
	synthMaxJunk   int
	synthAmplitude int32
	synthFrequency float64
	synthTail      int
	synthSeed      int64
)

var synthCmd = &cobra.Command{
	Use:   "synth <output.itf>",
	Short: "Generate a synthetic capture",
	Long: `Generate a capture holding a sine test tone on every channel. Frames can be
dropped and junk bytes inserted at random to exercise resynchronization and
gap handling. The parallel port carries the low byte of the logical index.`,
	Args: cobra.ExactArgs(1),
	RunE: runSynth,
}

func init() {
	rootCmd.AddCommand(synthCmd)
	synthCmd.Flags().IntVar(&synthFrames, "frames", 4883, "Logical frames to generate")
	synthCmd.Flags().Uint8Var(&synthStart, "start-record", 0, "Record counter of the first frame")
	synthCmd.Flags().Float64Var(&synthDropRate, "drop-rate", 0, "Probability of dropping a frame")
	synthCmd.Flags().Float64Var(&synthJunkRate, "junk-rate", 0, "Probability of junk before a frame")
	synthCmd.Flags().IntVar(&synthMaxJunk, "max-junk", 64, "Longest junk run in bytes")
	synthCmd.Flags().Int32Var(&synthAmplitude, "amplitude", 100000, "Peak sample value in counts")
	synthCmd.Flags().Float64Var(&synthFrequency, "frequency", 10, "Test tone frequency in Hz")
	synthCmd.Flags().IntVar(&synthTail, "tail", 0, "Bytes of a partial frame appended at the end")
	synthCmd.Flags().Int64Var(&synthSeed, "seed", 1, "Random seed")
}

func runSynth(cmd *cobra.Command, args []string) error {
	if synthFrames <= 0 {
		return fmt.Errorf("--frames must be positive")
	}
	if synthTail >= itek.FrameSize {
		return fmt.Errorf("--tail must be shorter than a frame (%d bytes)", itek.FrameSize)
	}

	data, rep := itek.Synthesize(itek.SynthOptions{
		Frames:       synthFrames,
		StartRecord:  synthStart,
		DropRate:     synthDropRate,
		JunkRate:     synthJunkRate,
		MaxJunk:      synthMaxJunk,
		Amplitude:    synthAmplitude,
		FrequencyHz:  synthFrequency,
		TailBytes:    synthTail,
		Seed:         synthSeed,
		ParallelPort: func(i int) uint8 { return uint8(i) },
	})

	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d frames, %d dropped, %d junk bytes, %d tail bytes\n",
		args[0], rep.Written, rep.Dropped, rep.JunkBytes, rep.TailBytes)
	return nil
}
