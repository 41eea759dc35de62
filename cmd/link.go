// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/itekstat/pkg/itek"
	"github.com/Thermoquad/itekstat/pkg/metrics"
)

// linkEvent is one thing worth reporting about the live stream
type linkEvent struct {
	frame     *itek.Frame
	index     int
	gap       *itek.Gap
	duplicate bool
	syncLost  bool
	anomalies []itek.ValidationError
}

// frameTracker turns raw link bytes into indexed frames and keeps the
// running statistics and metrics up to date
type frameTracker struct {
	sync   *itek.Synchronizer
	recon  *itek.Reconciler
	stats  *itek.Statistics
	frames uint64

	// skipped bytes before the first frame, for the sync message
	leading int64
}

func newFrameTracker() *frameTracker {
	return &frameTracker{
		sync:  itek.NewSynchronizer(),
		recon: itek.NewReconciler(),
		stats: itek.NewStatistics(),
	}
}

// Feed processes a chunk of link bytes and calls emit for every frame and
// every loss of alignment, in stream order
func (t *frameTracker) Feed(p []byte, emit func(linkEvent)) {
	skippedBefore := t.sync.SkippedBytes()

	for _, b := range p {
		f, err := t.sync.DecodeByte(b)
		if errors.Is(err, itek.ErrSyncLost) {
			emit(linkEvent{syncLost: true})
			continue
		}
		if f == nil {
			continue
		}
		if t.frames == 0 {
			t.leading = t.sync.SkippedBytes()
		}

		index, gap := t.recon.Next(f.Raw.RecordNumber(), f.Offset)
		duplicate := t.frames > 0 && index == t.stats.LastIndex
		t.frames++
		t.stats.Update(f, index, gap)
		metrics.RecordFrame(index, duplicate, gap)

		var anomalies []itek.ValidationError
		for _, v := range itek.ValidateFrame(&f.Raw) {
			if !v.Structural() {
				anomalies = append(anomalies, v)
			}
		}

		emit(linkEvent{frame: f, index: index, gap: gap, duplicate: duplicate, anomalies: anomalies})
	}

	t.stats.SetLinkCounters(t.sync.SkippedBytes(), t.sync.Resyncs())
	metrics.RecordLinkBytes(len(p), int(t.sync.SkippedBytes()-skippedBefore))
}

// Synchronized reports whether at least one frame has been found
func (t *frameTracker) Synchronized() bool {
	return t.frames > 0
}

// readLink copies connection reads onto a channel until the context ends or
// the connection fails. The error channel receives the terminal read error;
// io.EOF marks the end of a replay.
func readLink(ctx context.Context, conn Connection) (<-chan []byte, <-chan error) {
	dataChan := make(chan []byte, 64)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case dataChan <- data:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	return dataChan, errChan
}

// drainLink hands every chunk still queued to fn. Chunks are queued before
// the terminal error, so nothing is lost once the error has been received.
func drainLink(dataChan <-chan []byte, fn func([]byte)) {
	for {
		select {
		case data := <-dataChan:
			fn(data)
		default:
			return
		}
	}
}

// isEndOfStream reports whether a read error ends the stream normally
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// statsEvery converts the --stats-interval flag into a ticker period
func statsEvery(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
