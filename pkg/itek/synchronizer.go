// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import "errors"

// ErrSyncLost is returned by Synchronizer.DecodeByte when a byte is dropped
// right after a valid frame, meaning frame alignment has been lost.
var ErrSyncLost = errors.New("frame sync lost")

// Synchronizer applies the Scanner resync policy to a stream fed one byte at
// a time. For any byte sequence it yields exactly the frames a Scanner over
// the same bytes would yield, with the same offsets.
type Synchronizer struct {
	window  []byte
	start   int
	offset  int64 // stream offset of window[start]
	skipped int64
	resyncs int64
	synced  bool
	started bool
}

// NewSynchronizer creates a new stream synchronizer
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{
		window: make([]byte, 0, 2*FrameSize),
	}
}

// Reset discards buffered bytes and counters
func (s *Synchronizer) Reset() {
	s.window = s.window[:0]
	s.start = 0
	s.offset = 0
	s.skipped = 0
	s.resyncs = 0
	s.synced = false
	s.started = false
}

// DecodeByte feeds one byte into the synchronizer.
// Returns a completed frame, or nil while more bytes are needed.
// Returns ErrSyncLost when alignment is lost after a valid frame.
func (s *Synchronizer) DecodeByte(b byte) (*Frame, error) {
	if s.start >= FrameSize {
		n := copy(s.window, s.window[s.start:])
		s.window = s.window[:n]
		s.start = 0
	}
	s.window = append(s.window, b)

	if len(s.window)-s.start < FrameSize {
		return nil, nil
	}

	if validAt(s.window, s.start) {
		f := &Frame{Offset: s.offset, Raw: frameFromBytes(s.window[s.start:])}
		s.window = s.window[:0]
		s.start = 0
		s.offset += FrameSize
		s.synced = true
		s.started = true
		return f, nil
	}

	s.start++
	s.offset++
	s.skipped++
	if s.synced {
		s.synced = false
		if s.started {
			s.resyncs++
			return nil, ErrSyncLost
		}
	}
	return nil, nil
}

// Write feeds p into the synchronizer and returns every completed frame
func (s *Synchronizer) Write(p []byte) []Frame {
	var out []Frame
	for _, b := range p {
		if f, _ := s.DecodeByte(b); f != nil {
			out = append(out, *f)
		}
	}
	return out
}

// Synced reports whether the last complete window was a valid frame
func (s *Synchronizer) Synced() bool {
	return s.synced
}

// SkippedBytes returns the number of bytes dropped while searching for a frame
func (s *Synchronizer) SkippedBytes() int64 {
	return s.skipped
}

// Resyncs returns how many times alignment was lost after a valid frame
func (s *Synchronizer) Resyncs() int64 {
	return s.resyncs
}

// Buffered returns the number of bytes waiting for a full frame window
func (s *Synchronizer) Buffered() int {
	return len(s.window) - s.start
}
