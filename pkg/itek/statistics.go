// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and loss rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	LogicalFrames  uint64
	ValidFrames    uint64
	MissingFrames  uint64
	Duplicates     uint64
	Gaps           uint64
	AmbiguousGaps  uint64
	SkippedBytes   uint64
	Resyncs        uint64
	BufferOverflow uint64
	FIFOOverflow   uint64

	LastRecord uint8
	LastIndex  int

	// Rates (calculated)
	FrameRate float64 // valid frames/sec
	LossRate  float64 // missing frames/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one valid frame, its logical index and the gap before it
func (s *Statistics) Update(f *Frame, index int, gap *Gap) {
	s.ValidFrames++
	if s.ValidFrames > 1 && index == s.LastIndex {
		s.Duplicates++
	}
	if gap != nil {
		s.MissingFrames += uint64(gap.Missing)
		if gap.Missing > 0 {
			s.Gaps++
		}
		if gap.Ambiguous {
			s.AmbiguousGaps++
		}
	}
	if f.Raw.BufferOverflow() {
		s.BufferOverflow++
	}
	if f.Raw.PrimaryFIFOOverflow() || f.Raw.BackupFIFOOverflow() {
		s.FIFOOverflow++
	}
	s.LastRecord = f.Raw.RecordNumber()
	s.LastIndex = index
	s.LogicalFrames = uint64(index) + 1
	s.LastUpdateTime = time.Now()
}

// SetLinkCounters copies the resync counters of a scanner or synchronizer
func (s *Statistics) SetLinkCounters(skipped, resyncs int64) {
	s.SkippedBytes = uint64(skipped)
	s.Resyncs = uint64(resyncs)
}

// AddRecording accumulates the totals of a decoded recording
func (s *Statistics) AddRecording(r *Recording) {
	s.LogicalFrames += uint64(r.Len())
	s.ValidFrames += uint64(r.ValidFrames)
	s.MissingFrames += uint64(r.MissingFrames)
	s.Duplicates += uint64(r.Duplicates)
	for _, g := range r.Gaps {
		if g.Missing > 0 {
			s.Gaps++
		}
		if g.Ambiguous {
			s.AmbiguousGaps++
		}
	}
	s.SkippedBytes += uint64(r.SkippedBytes)
	s.Resyncs += uint64(r.Resyncs)
	for i := range r.Records {
		rec := &r.Records[i]
		if rec.Missing {
			continue
		}
		if rec.ErrorFlags&ErrorBufferOverflow != 0 {
			s.BufferOverflow++
		}
		if rec.StatusFlags&(StatusPFOSD|StatusBFOSD) != 0 {
			s.FIFOOverflow++
		}
	}
	s.LastUpdateTime = time.Now()
}

// LossPercent returns the share of logical frames that are missing
func (s *Statistics) LossPercent() float64 {
	if s.LogicalFrames == 0 {
		return 0
	}
	return float64(s.MissingFrames) * 100.0 / float64(s.LogicalFrames)
}

// CalculateRates calculates frame and loss rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.ValidFrames) / elapsed
		s.LossRate = float64(s.MissingFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.LogicalFrames > 0 {
		validPercent = float64(s.ValidFrames-s.Duplicates) * 100.0 / float64(s.LogicalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Logical Frames:  %8d\n", s.LogicalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.MissingFrames > 0 {
		result += fmt.Sprintf("Missing Frames:  %8d (%.1f%%)\n", s.MissingFrames, s.LossPercent())
		result += fmt.Sprintf("  Gaps:             %5d\n", s.Gaps)
		if s.AmbiguousGaps > 0 {
			result += fmt.Sprintf("  Ambiguous Gaps:   %5d\n", s.AmbiguousGaps)
		}
	}
	if s.Duplicates > 0 {
		result += fmt.Sprintf("Duplicates:      %8d\n", s.Duplicates)
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
		result += fmt.Sprintf("  Resyncs:          %5d\n", s.Resyncs)
	}
	if s.BufferOverflow > 0 {
		result += fmt.Sprintf("Buffer Overflow: %8d\n", s.BufferOverflow)
	}
	if s.FIFOOverflow > 0 {
		result += fmt.Sprintf("FIFO Overflow:   %8d\n", s.FIFOOverflow)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec (nominal %.1f)\n", s.FrameRate, SamplesPerSecond)
	result += fmt.Sprintf("Loss Rate:       %8.1f frames/sec\n", s.LossRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
