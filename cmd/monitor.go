// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/config"
	"github.com/Thermoquad/itekstat/pkg/itek"
	"github.com/Thermoquad/itekstat/pkg/metrics"
	"github.com/Thermoquad/itekstat/pkg/publish"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	replayPath    string
	metricsAddr   string
	mqttBroker    string
	mqttTopic     string
	mqttUsername  string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor the live frame stream for loss and errors",
	Long: `Read the amplifier link, lock onto the frame stream and track it in real time.

This command reports:
  - Loss of frame alignment and the bytes skipped to recover it
  - Gaps in the record counter, including ambiguous ones where the counter
    may have wrapped more than once
  - Duplicate frames
  - Buffer and FIFO overflows reported by the amplifier
  - Frame and loss rates against the nominal rate

By default, only events are displayed. Use --show-all to display every frame.

--replay plays a capture file back at the nominal byte rate instead of
opening a link. --metrics-addr serves Prometheus metrics and --mqtt-broker
publishes a JSON statistics snapshot every --stats-interval seconds.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just events)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().StringVar(&replayPath, "replay", "", "Replay a capture file instead of reading the link")
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. "+config.DefaultMetricsAddr+")")
	monitorCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "Publish statistics to this MQTT broker (tcp://host:1883)")
	monitorCmd.Flags().StringVar(&mqttTopic, "mqtt-topic", "", "MQTT topic (default from config)")
	monitorCmd.Flags().StringVar(&mqttUsername, "mqtt-username", "", "MQTT username")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	applyMonitorConfig(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(replayPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, logger); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	pub, err := connectPublisher()
	if err != nil {
		return err
	}
	defer pub.Close()

	if useTUI {
		return runTUIMode(ctx, conn, connInfo, pub)
	}
	return runTextMode(ctx, cmd.OutOrStdout(), conn, connInfo, pub)
}

// applyMonitorConfig fills sink flags the user did not set from the config
func applyMonitorConfig(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("metrics-addr") && cfg.Metrics.Addr != "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if !flags.Changed("mqtt-broker") && cfg.MQTT.Broker != "" {
		mqttBroker = cfg.MQTT.Broker
	}
	if !flags.Changed("mqtt-topic") {
		mqttTopic = cfg.MQTT.Topic
	}
	if !flags.Changed("mqtt-username") && cfg.MQTT.Username != "" {
		mqttUsername = cfg.MQTT.Username
	}
}

// connectPublisher connects to the MQTT broker when one is configured.
// A nil publisher is safe to use and publishes nothing.
func connectPublisher() (*publish.Publisher, error) {
	if mqttBroker == "" {
		return nil, nil
	}
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = config.DefaultMQTTClient
	}
	return publish.Connect(publish.Options{
		Broker:   mqttBroker,
		ClientID: clientID,
		Topic:    mqttTopic,
		Username: mqttUsername,
		Password: os.Getenv("ITEKSTAT_MQTT_PASSWORD"),
	}, logger)
}

// publishStats sends a snapshot when a publisher is connected
func publishStats(pub *publish.Publisher, source string, stats *itek.Statistics) {
	if pub == nil {
		return
	}
	if err := pub.Publish(publish.NewSnapshot(source, stats)); err != nil {
		logger.Warn().Err(err).Msg("failed to publish statistics")
	}
}

// printLinkEvent prints one tracker event in text mode
func printLinkEvent(out io.Writer, ev linkEvent) {
	timestamp := time.Now().Format("15:04:05.000")

	switch {
	case ev.syncLost:
		fmt.Fprintf(out, "[%s] \033[1;31mSYNC LOST:\033[0m searching for next frame\n\n", timestamp)
		return
	case ev.frame == nil:
		return
	}

	if ev.gap != nil {
		if ev.gap.Ambiguous {
			fmt.Fprintf(out, "[%s] \033[1;31mAMBIGUOUS GAP:\033[0m %s\n\n", timestamp, ev.gap)
		} else {
			fmt.Fprintf(out, "[%s] \033[1;33mGAP:\033[0m %d frames missing after index %d\n\n",
				timestamp, ev.gap.Missing, ev.gap.StartIndex)
		}
	}
	if ev.duplicate {
		fmt.Fprintf(out, "[%s] \033[1;33mDUPLICATE:\033[0m record #%d at index %d\n\n",
			timestamp, ev.frame.Raw.RecordNumber(), ev.index)
	}
	for _, a := range ev.anomalies {
		fmt.Fprintf(out, "[%s] \033[1;33m%s:\033[0m %s (record #%d)\n\n",
			timestamp, a.Type, a.Message, ev.frame.Raw.RecordNumber())
	}
	if showAll {
		fmt.Fprintf(out, "Index %d ", ev.index)
		fmt.Fprint(out, itek.FormatFrame(ev.frame))
	}
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(ctx context.Context, conn Connection, connInfo string, pub *publish.Publisher) error {
	m := initialModel(connInfo, statsInterval, showAll, pub)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	dataChan, errChan := readLink(ctx, conn)
	go func() {
		for {
			select {
			case data := <-dataChan:
				p.Send(linkDataMsg(data))
			case err := <-errChan:
				drainLink(dataChan, func(data []byte) { p.Send(linkDataMsg(data)) })
				p.Send(linkErrMsg{err: err})
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(ctx context.Context, out io.Writer, conn Connection, connInfo string, pub *publish.Publisher) error {
	fmt.Fprintf(out, "itekstat - Monitor\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All frames\n")
	} else {
		fmt.Fprintf(out, "Mode: Events only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	tracker := newFrameTracker()
	statsTicker := time.NewTicker(statsEvery(statsInterval))
	defer statsTicker.Stop()

	feed := func(data []byte) {
		wasSynced := tracker.Synchronized()
		tracker.Feed(data, func(ev linkEvent) {
			if !wasSynced && ev.frame != nil {
				wasSynced = true
				if tracker.leading > 0 {
					fmt.Fprintf(out, "[SYNC] Synchronized after skipping %d bytes\n\n", tracker.leading)
				} else {
					fmt.Fprintf(out, "[SYNC] Synchronized\n\n")
				}
			}
			printLinkEvent(out, ev)
		})
	}

	dataChan, errChan := readLink(ctx, conn)
	for {
		select {
		case data := <-dataChan:
			feed(data)

		case err := <-errChan:
			drainLink(dataChan, feed)
			fmt.Fprintln(out)
			fmt.Fprint(out, tracker.stats.String())
			publishStats(pub, connInfo, tracker.stats)
			if isEndOfStream(err) {
				logger.Info().Msg("stream ended")
				return nil
			}
			return fmt.Errorf("read error: %w", err)

		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, tracker.stats.String())
			fmt.Fprintln(out)
			publishStats(pub, connInfo, tracker.stats)

		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprint(out, tracker.stats.String())
			return nil
		}
	}
}
