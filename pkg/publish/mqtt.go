// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish sends live acquisition statistics to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

// Options configures the MQTT connection
type Options struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// Snapshot is the JSON payload published for each statistics interval
type Snapshot struct {
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	LogicalFrames uint64    `json:"logical_frames"`
	ValidFrames   uint64    `json:"valid_frames"`
	MissingFrames uint64    `json:"missing_frames"`
	Duplicates    uint64    `json:"duplicates"`
	Gaps          uint64    `json:"gaps"`
	AmbiguousGaps uint64    `json:"ambiguous_gaps"`
	SkippedBytes  uint64    `json:"skipped_bytes"`
	Resyncs       uint64    `json:"resyncs"`
	LossPercent   float64   `json:"loss_percent"`
	FrameRate     float64   `json:"frame_rate"`
	LastRecord    uint8     `json:"last_record"`
}

// NewSnapshot captures the current statistics
func NewSnapshot(source string, s *itek.Statistics) Snapshot {
	s.CalculateRates()
	return Snapshot{
		Source:        source,
		Timestamp:     time.Now().UTC(),
		LogicalFrames: s.LogicalFrames,
		ValidFrames:   s.ValidFrames,
		MissingFrames: s.MissingFrames,
		Duplicates:    s.Duplicates,
		Gaps:          s.Gaps,
		AmbiguousGaps: s.AmbiguousGaps,
		SkippedBytes:  s.SkippedBytes,
		Resyncs:       s.Resyncs,
		LossPercent:   s.LossPercent(),
		FrameRate:     s.FrameRate,
		LastRecord:    s.LastRecord,
	}
}

// Publisher publishes statistics snapshots
type Publisher struct {
	client mqtt.Client
	opts   Options
	logger zerolog.Logger
}

// Connect opens a connection to the broker
func Connect(opts Options, logger zerolog.Logger) (*Publisher, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}

	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(10 * time.Second)
	co.SetKeepAlive(60 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	co.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info().Str("broker", opts.Broker).Msg("MQTT connected")
	})
	co.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.WaitTimeout(15*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, opts: opts, logger: logger}, nil
}

// Encode renders a snapshot as its JSON payload
func Encode(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Publish sends a snapshot without waiting for the broker
func (p *Publisher) Publish(s Snapshot) error {
	if p == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT not connected")
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.opts.Topic, p.opts.QoS, p.opts.Retain, data)
	go func() {
		if token.Wait() && token.Error() != nil {
			p.logger.Error().Err(token.Error()).Str("topic", p.opts.Topic).Msg("MQTT publish failed")
		}
	}()
	return nil
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	if p != nil && p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
