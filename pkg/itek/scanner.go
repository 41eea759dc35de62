// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import "iter"

// Scanner walks a byte buffer and yields every valid frame in order.
//
// At each position the scanner tests the next FrameSize bytes. A valid frame
// is yielded and the position advances by FrameSize. Otherwise the position
// advances by a single byte, so alignment is recovered after arbitrary junk.
// The scan ends when fewer than FrameSize bytes remain. The input buffer is
// never modified.
type Scanner struct {
	buf     []byte
	pos     int
	frame   Frame
	skipped int64
	resyncs int64
	inSkip  bool
	started bool
}

// NewScanner creates a scanner over buf
func NewScanner(buf []byte) *Scanner {
	return &Scanner{buf: buf}
}

// Reset rewinds the scanner to the start of its buffer
func (s *Scanner) Reset() {
	s.pos = 0
	s.frame = Frame{}
	s.skipped = 0
	s.resyncs = 0
	s.inSkip = false
	s.started = false
}

// Next advances to the next valid frame. It returns false when the buffer
// holds no further valid frame.
func (s *Scanner) Next() bool {
	for len(s.buf)-s.pos >= FrameSize {
		if validAt(s.buf, s.pos) {
			s.frame = Frame{Offset: int64(s.pos), Raw: frameFromBytes(s.buf[s.pos:])}
			s.pos += FrameSize
			s.inSkip = false
			s.started = true
			return true
		}
		if !s.inSkip && s.started {
			s.resyncs++
		}
		s.inSkip = true
		s.skipped++
		s.pos++
	}
	return false
}

// Frame returns the frame found by the last successful call to Next
func (s *Scanner) Frame() Frame {
	return s.frame
}

// Offset returns the current scan position
func (s *Scanner) Offset() int {
	return s.pos
}

// SkippedBytes returns the number of single-byte advances made so far.
// Bytes in a trailing partial frame are not counted here.
func (s *Scanner) SkippedBytes() int64 {
	return s.skipped
}

// Resyncs returns how many times alignment was lost after a valid frame
func (s *Scanner) Resyncs() int64 {
	return s.resyncs
}

// TrailingBytes returns the number of bytes left over after the scan, which
// are too few to hold a frame. Only meaningful once Next has returned false.
func (s *Scanner) TrailingBytes() int {
	return len(s.buf) - s.pos
}

// FindFirstValidFrame returns the byte offset of the first valid frame in
// buf, or ErrNoValidFrame.
func FindFirstValidFrame(buf []byte) (int, error) {
	for off := 0; len(buf)-off >= FrameSize; off++ {
		if validAt(buf, off) {
			return off, nil
		}
	}
	return 0, ErrNoValidFrame
}

// ValidFrames returns a lazy sequence over the valid frames of buf. The
// sequence can be ranged over more than once.
func ValidFrames(buf []byte) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		s := NewScanner(buf)
		for s.Next() {
			if !yield(s.Frame()) {
				return
			}
		}
	}
}
