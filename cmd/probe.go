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
	probeTimeout int
	probeReplay  string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the link by waiting for a valid frame",
	Long: `Wait for a valid frame on the link until timeout.

This command connects to a serial port or WebSocket and waits for any frame
that passes the marker and terminator checks, ignoring bytes until then.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	probeCmd.Flags().StringVar(&probeReplay, "replay", "", "Probe a capture file played back in real time")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(probeReplay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("itekstat - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a valid frame...\n\n")

	frameChan := make(chan *itek.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		sync := itek.NewSynchronizer()
		buf := make([]byte, itek.FrameSize)
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				if f, _ := sync.DecodeByte(buf[i]); f != nil {
					if skipped := sync.SkippedBytes(); skipped > 0 {
						fmt.Printf("(skipped %d bytes before sync)\n", skipped)
					}
					frameChan <- f
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Record: #%d\n", f.Raw.RecordNumber())
		fmt.Printf("  Error flags: 0x%02X\n", f.Raw.ErrorFlags())
		fmt.Printf("  Status: %s\n", itek.FormatStatusFlags(f.Raw.StatusFlags()))
		fmt.Printf("  Parallel port: 0x%02X\n", f.Raw.ParallelPort())
		os.Exit(0)
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}
	return nil
}
