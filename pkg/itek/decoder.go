// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// SignExtend24 assembles a big-endian 24-bit two's complement word into an
// int32. When the top bit of msb is set the high byte is filled with ones.
func SignExtend24(msb, mid, lsb byte) int32 {
	v := uint32(msb)<<16 | uint32(mid)<<8 | uint32(lsb)
	if msb&0x80 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

// DecodeChannels decodes the 128 sample words of a frame into channel order,
// so that the result at index c holds channel c.
func DecodeChannels(f *RawFrame) [NumChannels]int32 {
	var out [NumChannels]int32
	for i := range blocks {
		blk := &blocks[i]
		for w := 0; w < blk.count; w++ {
			at := blk.dataAt + w*BytesPerSample
			out[blk.highChannel-w] = SignExtend24(f[at], f[at+1], f[at+2])
		}
	}
	return out
}

// DecodeFrame decodes a raw frame into a sample record
func DecodeFrame(f *RawFrame) SampleRecord {
	return SampleRecord{
		Channels:     DecodeChannels(f),
		ErrorFlags:   f.ErrorFlags(),
		StatusFlags:  f.StatusFlags(),
		ParallelPort: f.ParallelPort(),
		TRRegister:   f.TRRegister(),
	}
}

// BuildDenseOutput places each decoded frame at its logical index. The result
// has max(indices)+1 records; indices without a frame are marked Missing.
// indices must hold one entry per frame. When two frames share an index the
// later one wins. Zero frames yield an empty slice.
func BuildDenseOutput(frames []Frame, indices []int) []SampleRecord {
	n := min(len(frames), len(indices))
	if n == 0 {
		return []SampleRecord{}
	}

	size := 0
	for _, idx := range indices[:n] {
		size = max(size, idx+1)
	}

	out := make([]SampleRecord, size)
	for i := range out {
		out[i].Missing = true
	}
	for i := 0; i < n; i++ {
		out[indices[i]] = DecodeFrame(&frames[i].Raw)
	}
	return out
}

// Decoder runs the full scan, reconcile and decode pass over a capture
type Decoder struct {
	// Logger receives resync, gap and truncation events
	Logger zerolog.Logger
}

// NewDecoder creates a decoder with logging disabled
func NewDecoder() *Decoder {
	return &Decoder{Logger: zerolog.Nop()}
}

// Decode scans buf for valid frames, reconciles their record counters and
// returns the dense recording. ErrNoValidFrame is returned when buf holds
// no valid frame.
func (d *Decoder) Decode(buf []byte) (*Recording, error) {
	s := NewScanner(buf)
	var frames []Frame
	for s.Next() {
		f := s.Frame()
		if len(frames) == 0 && f.Offset > 0 {
			d.Logger.Debug().Int64("offset", f.Offset).Msg("first valid frame after leading junk")
		}
		frames = append(frames, f)
	}

	if len(frames) == 0 {
		return nil, ErrNoValidFrame
	}

	if s.SkippedBytes() > 0 {
		d.Logger.Debug().
			Int64("skipped_bytes", s.SkippedBytes()).
			Int64("resyncs", s.Resyncs()).
			Msg("resynchronized frame stream")
	}
	if tail := s.TrailingBytes(); tail > 0 {
		d.Logger.Debug().Int("trailing_bytes", tail).Msg("discarded truncated tail")
	}

	indices, gaps := ReconcileRecordNumbers(frames)
	for _, g := range gaps {
		if g.Ambiguous {
			d.Logger.Warn().
				Int("start_index", g.StartIndex).
				Int("missing", g.Missing).
				Int64("span_frames", g.SpanFrames).
				Int64("offset", g.Offset).
				Msg("ambiguous gap: record counter may have wrapped more than once")
			continue
		}
		d.Logger.Info().
			Int("start_index", g.StartIndex).
			Int("missing", g.Missing).
			Int64("offset", g.Offset).
			Msg("frames missing")
	}

	records := BuildDenseOutput(frames, indices)

	rec := &Recording{
		Records:       records,
		Gaps:          gaps,
		ValidFrames:   len(frames),
		SkippedBytes:  s.SkippedBytes(),
		Resyncs:       s.Resyncs(),
		TrailingBytes: s.TrailingBytes(),
		FirstOffset:   frames[0].Offset,
	}
	for i := range records {
		if records[i].Missing {
			rec.MissingFrames++
		}
	}
	rec.Duplicates = len(frames) - (len(records) - rec.MissingFrames)
	return rec, nil
}

// DecodeFile reads and decodes a capture file
func (d *Decoder) DecodeFile(path string) (*Recording, error) {
	buf, err := ReadCapture(path)
	if err != nil {
		return nil, err
	}
	rec, err := d.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Decode decodes buf with a default decoder
func Decode(buf []byte) (*Recording, error) {
	return NewDecoder().Decode(buf)
}

// ReadCapture loads a raw capture file into memory
func ReadCapture(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return buf, nil
}
