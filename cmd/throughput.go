// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	throughputDuration int
	throughputReplay   string
)

var throughputCmd = &cobra.Command{
	Use:   "throughput",
	Short: "Measure link throughput against the amplifier rate",
	Long: `Read the link for a fixed time and compare the byte and frame rates with
the nominal amplifier rate of one 400 byte frame every 2.048 ms.

Useful for checking that a serial adapter or WebSocket bridge keeps up.

Exit codes:
  0 - Link kept up with the nominal rate
  1 - Link fell short of the nominal rate or failed during the test
  2 - Connection error`,
	RunE: runThroughput,
}

func init() {
	rootCmd.AddCommand(throughputCmd)
	throughputCmd.Flags().IntVar(&throughputDuration, "duration", 30, "Test duration in seconds")
	throughputCmd.Flags().StringVar(&throughputReplay, "replay", "", "Measure a capture file played back in real time")
}

// throughputTolerance is the share of the nominal rate a link must reach
const throughputTolerance = 0.98

func runThroughput(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(throughputReplay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Link Throughput Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", throughputDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	tracker := newFrameTracker()
	start := time.Now()
	endTime := start.Add(time.Duration(throughputDuration) * time.Second)
	bytesReceived := 0
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	fmt.Printf("Listening for data...\n\n")

	failed := false
	for time.Now().Before(endTime) && !failed {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			tracker.Feed(data, func(linkEvent) {})

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			failed = true

		case <-heartbeat.C:
			elapsed := time.Since(start).Seconds()
			fmt.Printf("[%s] %8.0f B/s  %6.1f frames/s  (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"),
				float64(bytesReceived)/elapsed,
				float64(tracker.stats.ValidFrames)/elapsed,
				time.Until(endTime).Seconds())
		}
	}

	elapsed := time.Since(start).Seconds()
	byteRate := float64(bytesReceived) / elapsed
	frameRate := float64(tracker.stats.ValidFrames) / elapsed

	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %.1f seconds\n", elapsed)
	fmt.Printf("Bytes received: %d (%.0f B/s, nominal %.0f)\n", bytesReceived, byteRate, itek.BytesPerSecond)
	fmt.Printf("Valid frames: %d (%.1f frames/s, nominal %.1f)\n", tracker.stats.ValidFrames, frameRate, itek.SamplesPerSecond)
	fmt.Printf("Missing frames: %d (%.2f%%)\n", tracker.stats.MissingFrames, tracker.stats.LossPercent())
	fmt.Printf("Skipped bytes: %d\n", tracker.stats.SkippedBytes)

	switch {
	case failed:
		fmt.Printf("Result: FAILED (connection error)\n")
		os.Exit(1)
	case byteRate < itek.BytesPerSecond*throughputTolerance:
		fmt.Printf("Result: FAILED (%.1f%% of nominal rate)\n", byteRate*100/itek.BytesPerSecond)
		os.Exit(1)
	}
	fmt.Printf("Result: PASSED (%.1f%% of nominal rate)\n", byteRate*100/itek.BytesPerSecond)
	return nil
}
