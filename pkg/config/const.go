// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

const (
	ConfigDir  = ".itekstat"
	ConfigFile = "config.yaml"

	DefaultLogLevel    = "info"
	DefaultCardMap     = "1,0,2,3,4,5,6,7,8,9,10,11,12,13,14,15"
	DefaultSerialBaud  = 921600
	DefaultCompression = "zstd"
	DefaultMetricsAddr = ":9477"
	DefaultMQTTTopic   = "itekstat/stats"
	DefaultMQTTClient  = "itekstat"
)
