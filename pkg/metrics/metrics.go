// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes live acquisition counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

var (
	registerOnce sync.Once

	framesValid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itekstat",
			Subsystem: "frames",
			Name:      "valid_total",
			Help:      "Valid frames received.",
		},
	)
	framesMissing = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itekstat",
			Subsystem: "frames",
			Name:      "missing_total",
			Help:      "Frames inferred missing from the record counter.",
		},
	)
	framesDuplicate = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itekstat",
			Subsystem: "frames",
			Name:      "duplicate_total",
			Help:      "Frames repeating the previous record counter.",
		},
	)
	gaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itekstat",
			Subsystem: "frames",
			Name:      "gaps_total",
			Help:      "Gaps between consecutive valid frames.",
		},
		[]string{"ambiguous"},
	)
	linkBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itekstat",
			Subsystem: "link",
			Name:      "bytes_total",
			Help:      "Raw bytes read from the amplifier link.",
		},
	)
	resyncBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itekstat",
			Subsystem: "link",
			Name:      "resync_bytes_total",
			Help:      "Bytes skipped while searching for frame alignment.",
		},
	)
	logicalIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "itekstat",
			Name:      "logical_index",
			Help:      "Logical frame index of the most recent valid frame.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesValid, framesMissing, framesDuplicate, gaps, linkBytes, resyncBytes, logicalIndex)
	})
}

// RecordFrame counts a valid frame and the gap that preceded it
func RecordFrame(index int, duplicate bool, gap *itek.Gap) {
	RegisterMetrics()
	framesValid.Inc()
	logicalIndex.Set(float64(index))
	if duplicate {
		framesDuplicate.Inc()
	}
	if gap != nil {
		framesMissing.Add(float64(gap.Missing))
		gaps.WithLabelValues(strconv.FormatBool(gap.Ambiguous)).Inc()
	}
}

// RecordLinkBytes counts raw bytes read and bytes dropped for resync
func RecordLinkBytes(read, skipped int) {
	RegisterMetrics()
	linkBytes.Add(float64(read))
	resyncBytes.Add(float64(skipped))
}

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
