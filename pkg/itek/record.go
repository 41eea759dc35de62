// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import "time"

// SampleRecord is one decoded frame at a logical index. Missing records carry
// a zero payload that must not be interpreted as data.
type SampleRecord struct {
	Channels     [NumChannels]int32
	ErrorFlags   uint8
	StatusFlags  uint8
	ParallelPort uint8
	TRRegister   uint16
	Missing      bool
}

// Recording is the dense result of decoding a capture. Records[i] holds the
// frame at logical index i.
type Recording struct {
	Records []SampleRecord
	Gaps    []Gap

	ValidFrames   int
	MissingFrames int
	Duplicates    int
	SkippedBytes  int64
	Resyncs       int64
	TrailingBytes int
	FirstOffset   int64
}

// Len returns the number of logical frames, including missing ones
func (r *Recording) Len() int {
	return len(r.Records)
}

// Duration returns the time spanned by the logical frames
func (r *Recording) Duration() time.Duration {
	return time.Duration(float64(len(r.Records)) * SamplePeriodMillis * float64(time.Millisecond))
}

// Channel returns the samples of channel ch across all logical frames
func (r *Recording) Channel(ch int) []int32 {
	out := make([]int32, len(r.Records))
	for i := range r.Records {
		out[i] = r.Records[i].Channels[ch]
	}
	return out
}

// ParallelPort returns the parallel port column
func (r *Recording) ParallelPort() []uint8 {
	out := make([]uint8, len(r.Records))
	for i := range r.Records {
		out[i] = r.Records[i].ParallelPort
	}
	return out
}

// ErrorFlags returns the error flag column
func (r *Recording) ErrorFlags() []uint8 {
	out := make([]uint8, len(r.Records))
	for i := range r.Records {
		out[i] = r.Records[i].ErrorFlags
	}
	return out
}

// StatusFlags returns the status flag column
func (r *Recording) StatusFlags() []uint8 {
	out := make([]uint8, len(r.Records))
	for i := range r.Records {
		out[i] = r.Records[i].StatusFlags
	}
	return out
}

// TRRegister returns the TR register column
func (r *Recording) TRRegister() []uint16 {
	out := make([]uint16, len(r.Records))
	for i := range r.Records {
		out[i] = r.Records[i].TRRegister
	}
	return out
}

// MissingMask returns true at every logical index with no received frame
func (r *Recording) MissingMask() []bool {
	out := make([]bool, len(r.Records))
	for i := range r.Records {
		out[i] = r.Records[i].Missing
	}
	return out
}

// AmbiguousGaps returns the number of gaps flagged as ambiguous
func (r *Recording) AmbiguousGaps() int {
	n := 0
	for _, g := range r.Gaps {
		if g.Ambiguous {
			n++
		}
	}
	return n
}
