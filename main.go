// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// itekstat - Itek EMG Capture Analyzer
//
// A CLI tool for decoding, converting and monitoring Itek EMG amplifier
// frame streams.

package main

import (
	"os"

	"github.com/Thermoquad/itekstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
