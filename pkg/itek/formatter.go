// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame header and its decoded channels into a
// human-readable string
func FormatFrame(f *Frame) string {
	r := &f.Raw
	var sb strings.Builder

	fmt.Fprintf(&sb, "[@%d] Record #%d err=0x%02X status=0x%02X (%s) pp=0x%02X tr=0x%04X\n",
		f.Offset, r.RecordNumber(), r.ErrorFlags(), r.StatusFlags(),
		FormatStatusFlags(r.StatusFlags()), r.ParallelPort(), r.TRRegister())

	ch := DecodeChannels(r)
	for c := NumChannels - 1; c >= 0; c -= 8 {
		sb.WriteString("   ")
		for k := c; k > c-8; k-- {
			fmt.Fprintf(&sb, " %3d:%9d", k, ch[k])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatFrameRaw formats a frame block by block, showing the raw bytes of
// every sample word
func FormatFrameRaw(r *RawFrame) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "    Record #: %d. Error flags: 0x%X. Status flags: 0x%X\n",
		r.RecordNumber(), r.ErrorFlags(), r.StatusFlags())
	fmt.Fprintf(&sb, "    Parallel port: 0x%X, TR: 0x%X 0x%X\n",
		r.ParallelPort(), r[offsetTRRegister], r[offsetTRRegister+1])

	for i := range blocks {
		blk := &blocks[i]
		fmt.Fprintf(&sb, "    Block %d ID: %s,", i+1, formatMarker(r[blk.markerAt]))
		for w := 0; w < blk.count; w++ {
			at := blk.dataAt + w*BytesPerSample
			fmt.Fprintf(&sb, " Ch %d: %02X %02X %02X", blk.highChannel-w, r[at], r[at+1], r[at+2])
		}
		sb.WriteString("\n")
	}

	hi, lo := r.Terminator()
	fmt.Fprintf(&sb, "    Record chk: %d, Frame end: 0x%02X 0x%02X\n", r.SameRecordNumber(), hi, lo)
	return sb.String()
}

// formatMarker prints a marker byte as a quoted character when printable
func formatMarker(b byte) string {
	if b >= 0x20 && b < 0x7F {
		return fmt.Sprintf("'%c'", b)
	}
	return fmt.Sprintf("0x%02X", b)
}

// FormatStatusFlags returns the names of the set status bits
func FormatStatusFlags(status uint8) string {
	names := []string{}
	if status&StatusPRKLSB != 0 {
		names = append(names, "PRK_LSB")
	}
	if status&StatusPRKMSB != 0 {
		names = append(names, "PRK_MSB")
	}
	if status&StatusPFOSD != 0 {
		names = append(names, "PFOSD")
	}
	if status&StatusBRKLSB != 0 {
		names = append(names, "BRK_LSB")
	}
	if status&StatusBRKMSB != 0 {
		names = append(names, "BRK_MSB")
	}
	if status&StatusBFOSD != 0 {
		names = append(names, "BFOSD")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// FormatValidationErrors joins validation errors into one line each
func FormatValidationErrors(errs []ValidationError) string {
	var sb strings.Builder
	for _, e := range errs {
		fmt.Fprintf(&sb, "  %s: %s\n", e.Type, e.Message)
	}
	return sb.String()
}

// FormatRecording returns a short summary of a decoded recording
func FormatRecording(r *Recording) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Logical frames:  %8d (%.3f s)\n", r.Len(), r.Duration().Seconds())
	fmt.Fprintf(&sb, "Valid frames:    %8d\n", r.ValidFrames)
	fmt.Fprintf(&sb, "Missing frames:  %8d\n", r.MissingFrames)
	if r.Duplicates > 0 {
		fmt.Fprintf(&sb, "Duplicates:      %8d\n", r.Duplicates)
	}
	fmt.Fprintf(&sb, "Gaps:            %8d", len(r.Gaps))
	if n := r.AmbiguousGaps(); n > 0 {
		fmt.Fprintf(&sb, " (%d ambiguous)", n)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "First frame at:  %8d\n", r.FirstOffset)
	fmt.Fprintf(&sb, "Skipped bytes:   %8d\n", r.SkippedBytes)
	fmt.Fprintf(&sb, "Trailing bytes:  %8d\n", r.TrailingBytes)
	return sb.String()
}
