// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/analysis"
	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	infoChannels string
	infoGaps     bool
)

var infoCmd = &cobra.Command{
	Use:   "info <capture.itf>",
	Short: "Summarize a capture",
	Long: `Decode a capture and print frame accounting, the card configuration and
per-channel statistics (mean, standard deviation, range, RMS and the
strongest spectral component).

Values are in microvolts when card info is available and raw counts
otherwise. --channels selects channels as for clip_stats.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoChannels, "channels", "on", "Channels to summarize: on, all, or a list")
	infoCmd.Flags().BoolVar(&infoGaps, "gaps", false, "List every gap")
}

var (
	infoTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	infoLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	infoDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	infoWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	infoBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func runInfo(cmd *cobra.Command, args []string) error {
	order, err := cardOrder()
	if err != nil {
		return err
	}
	chanMap, _ := itek.ChannelMap(order)
	sel, err := analysis.ParseChannelSelection(infoChannels)
	if err != nil {
		return err
	}

	rec, cards, err := loadCapture(args[0])
	if err != nil {
		return err
	}

	var s strings.Builder
	s.WriteString(infoTitleStyle.Render("ITEKSTAT - " + args[0]))
	s.WriteString("\n\n")
	s.WriteString(infoBoxStyle.Render(strings.TrimRight(itek.FormatRecording(rec), "\n")))
	s.WriteString("\n\n")

	if infoGaps && len(rec.Gaps) > 0 {
		s.WriteString(infoLabelStyle.Render("Gaps:"))
		s.WriteString("\n")
		for _, g := range rec.Gaps {
			line := "  " + g.String()
			if g.Ambiguous {
				line = infoWarnStyle.Render(line)
			}
			s.WriteString(line + "\n")
		}
		s.WriteString("\n")
	}

	unit := "counts"
	if cards != nil {
		unit = "uV"
		s.WriteString(infoLabelStyle.Render("Cards:"))
		s.WriteString("\n")
		s.WriteString(infoBoxStyle.Render(formatCards(cards, order)))
		s.WriteString("\n\n")
	}

	scaleFor := func(ch int) float64 {
		if cards == nil {
			return 1
		}
		return cards.ChannelCard(chanMap, ch).ScaleFactor()
	}
	summaries := analysis.SummarizeAll(rec, sel.Resolve(cards, chanMap), scaleFor)

	s.WriteString(infoLabelStyle.Render(fmt.Sprintf("Channels (%s):", unit)))
	s.WriteString("\n")
	s.WriteString(infoDimStyle.Render(fmt.Sprintf("  %4s %12s %12s %12s %12s %12s %8s",
		"ch", "mean", "stddev", "min", "max", "rms", "peak_hz")))
	s.WriteString("\n")
	for _, cs := range summaries {
		fmt.Fprintf(&s, "  %4d %12.3f %12.3f %12.3f %12.3f %12.3f %8.2f\n",
			cs.Channel, cs.Mean, cs.StdDev, cs.Min, cs.Max, cs.RMS, cs.PeakHz)
	}

	fmt.Fprint(cmd.OutOrStdout(), s.String())
	return nil
}

// formatCards lists the cards in channel block order
func formatCards(cards *itek.CardInfo, order []int) string {
	var sb strings.Builder
	for i, card := range order {
		c := cards.Cards[card]
		state := "off"
		if c.On {
			state = "on"
		}
		line := fmt.Sprintf("Card %2d  ch %3d-%3d  %-3s gain %6.0f  lpf %4.0f Hz",
			card, i*itek.ChannelsPerCard, (i+1)*itek.ChannelsPerCard-1, state, c.Gain, c.LPF)
		if !c.Configured {
			line = infoDimStyle.Render(line + "  (default)")
		}
		sb.WriteString(line)
		if i < len(order)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
