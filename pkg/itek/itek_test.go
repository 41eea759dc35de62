// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// testFields builds frame fields whose channel c holds a value derived from
// the record number, with alternating signs
func testFields(rec uint8) FrameFields {
	ff := FrameFields{
		RecordNumber: rec,
		ErrorFlags:   0,
		StatusFlags:  StatusPRKLSB,
		ParallelPort: rec ^ 0xA5,
		TRRegister:   0x1200 | uint16(rec),
	}
	for c := range ff.Channels {
		v := int32(c)*1000 + int32(rec)
		if c%2 == 1 {
			v = -v
		}
		ff.Channels[c] = v
	}
	return ff
}

// buildFrame encodes the test frame for a record number
func buildFrame(rec uint8) RawFrame {
	return MustEncodeFrame(testFields(rec))
}

// buildStream concatenates test frames for the given record numbers
func buildStream(recs ...uint8) []byte {
	var buf bytes.Buffer
	for _, r := range recs {
		f := buildFrame(r)
		buf.Write(f[:])
	}
	return buf.Bytes()
}

// corruptFrame returns the frame for rec with its third marker damaged
func corruptFrame(rec uint8) []byte {
	f := buildFrame(rec)
	f[blocks[2].markerAt] = 'X'
	return f[:]
}

// ============================================================
// Frame Layout Tests
// ============================================================

func TestBlockLayout_CoversFrame(t *testing.T) {
	covered := make([]bool, FrameSize)
	mark := func(from, n int) {
		for i := from; i < from+n; i++ {
			if covered[i] {
				t.Fatalf("byte %d covered twice", i)
			}
			covered[i] = true
		}
	}

	mark(offsetRecordNumber, 1)
	mark(offsetErrorFlags, 1)
	mark(offsetStatusFlags, 1)
	mark(offsetParallelPort, 1)
	mark(offsetTRRegister, 2)
	mark(offsetSameRecordNumber, 1)
	mark(offsetTerminator, 2)

	channels := 0
	for _, b := range blocks {
		mark(b.markerAt, 1)
		mark(b.dataAt, b.count*BytesPerSample)
		channels += b.count
	}

	if channels != NumChannels {
		t.Errorf("blocks hold %d channels, want %d", channels, NumChannels)
	}
	for i, c := range covered {
		if !c {
			t.Errorf("byte %d not covered by layout", i)
		}
	}
}

func TestRawFrame_Accessors(t *testing.T) {
	f := MustEncodeFrame(FrameFields{
		RecordNumber: 42,
		ErrorFlags:   ErrorBufferOverflow,
		StatusFlags:  StatusPRKMSB | StatusBRKLSB | StatusBFOSD,
		ParallelPort: 0x81,
		TRRegister:   0xBEEF,
	})

	if f.RecordNumber() != 42 || f.SameRecordNumber() != 42 {
		t.Errorf("record numbers = %d/%d, want 42/42", f.RecordNumber(), f.SameRecordNumber())
	}
	if f.ParallelPort() != 0x81 {
		t.Errorf("parallel port = 0x%02X, want 0x81", f.ParallelPort())
	}
	if f.TRRegister() != 0xBEEF {
		t.Errorf("TR register = 0x%04X, want 0xBEEF", f.TRRegister())
	}
	if f[offsetTRRegister] != 0xBE || f[offsetTRRegister+1] != 0xEF {
		t.Errorf("TR register not stored most significant byte first")
	}
	if !f.BufferOverflow() {
		t.Error("expected buffer overflow flag")
	}
	if f.PrimaryRecordKey() != 2 {
		t.Errorf("primary record key = %d, want 2", f.PrimaryRecordKey())
	}
	if f.BackupRecordKey() != 1 {
		t.Errorf("backup record key = %d, want 1", f.BackupRecordKey())
	}
	if f.PrimaryFIFOOverflow() {
		t.Error("unexpected primary FIFO overflow")
	}
	if !f.BackupFIFOOverflow() {
		t.Error("expected backup FIFO overflow")
	}
	if !f.Valid() {
		t.Error("encoded frame should be valid")
	}
}

func TestRawFrame_Valid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *RawFrame)
		valid  bool
	}{
		{"untouched", func(f *RawFrame) {}, true},
		{"first marker", func(f *RawFrame) { f[0] = '0' }, false},
		{"last marker", func(f *RawFrame) { f[369] = '8' }, false},
		{"record mismatch", func(f *RawFrame) { f[offsetSameRecordNumber]++ }, false},
		{"terminator high", func(f *RawFrame) { f[398] = 0x54 }, false},
		{"terminator low", func(f *RawFrame) { f[399] = 0xAB }, false},
		{"swapped terminator", func(f *RawFrame) { f[398], f[399] = 0xAA, 0x55 }, false},
		{"sample data", func(f *RawFrame) { f[100] ^= 0xFF }, true},
		{"status byte", func(f *RawFrame) { f[offsetStatusFlags] = 0xFF }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := buildFrame(7)
			tt.mutate(&f)
			if f.Valid() != tt.valid {
				t.Errorf("Valid() = %v, want %v", f.Valid(), tt.valid)
			}
			if validAt(f[:], 0) != tt.valid {
				t.Errorf("validAt() = %v, want %v", validAt(f[:], 0), tt.valid)
			}
		})
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateFrame_Clean(t *testing.T) {
	f := buildFrame(3)
	f[offsetStatusFlags] = 0
	if errs := ValidateFrame(&f); len(errs) != 0 {
		t.Errorf("expected no validation errors, got %v", errs)
	}
}

func TestValidateFrame_ReportsEveryProblem(t *testing.T) {
	f := buildFrame(3)
	f[blocks[1].markerAt] = 0
	f[blocks[5].markerAt] = 0
	f[offsetSameRecordNumber] = 4
	f[offsetTerminator] = 0
	f[offsetErrorFlags] = ErrorBufferOverflow

	errs := ValidateFrame(&f)
	counts := map[AnomalyType]int{}
	structural := 0
	for i := range errs {
		counts[errs[i].Type]++
		if errs[i].Structural() {
			structural++
		}
	}

	if counts[AnomalyBadMarker] != 2 {
		t.Errorf("bad markers = %d, want 2", counts[AnomalyBadMarker])
	}
	if counts[AnomalyRecordMismatch] != 1 {
		t.Errorf("record mismatches = %d, want 1", counts[AnomalyRecordMismatch])
	}
	if counts[AnomalyBadTerminator] != 1 {
		t.Errorf("bad terminators = %d, want 1", counts[AnomalyBadTerminator])
	}
	if counts[AnomalyBufferOverflow] != 1 {
		t.Errorf("buffer overflows = %d, want 1", counts[AnomalyBufferOverflow])
	}
	if structural != 4 {
		t.Errorf("structural errors = %d, want 4", structural)
	}
}

func TestValidateFrame_AgreesWithValid(t *testing.T) {
	rng := newFuzzRng(t)
	for round := 0; round < getFuzzRounds(); round++ {
		f := buildFrame(uint8(round))
		for n := rng.Intn(3); n > 0; n-- {
			f[rng.Intn(FrameSize)] = byte(rng.Intn(256))
		}
		structural := false
		for _, e := range ValidateFrame(&f) {
			if e.Structural() {
				structural = true
			}
		}
		if structural == f.Valid() {
			t.Fatalf("round %d: Valid()=%v but structural errors=%v", round, f.Valid(), structural)
		}
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatStatusFlags(t *testing.T) {
	tests := []struct {
		status uint8
		want   string
	}{
		{0, "none"},
		{StatusPRKLSB, "PRK_LSB"},
		{StatusPFOSD | StatusBFOSD, "PFOSD|BFOSD"},
		{0x3F, "PRK_LSB|PRK_MSB|PFOSD|BRK_LSB|BRK_MSB|BFOSD"},
	}
	for _, tt := range tests {
		if got := FormatStatusFlags(tt.status); got != tt.want {
			t.Errorf("FormatStatusFlags(0x%02X) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestFormatFrame_ContainsFields(t *testing.T) {
	f := Frame{Offset: 800, Raw: buildFrame(9)}
	out := FormatFrame(&f)
	for _, want := range []string{"[@800]", "Record #9", "pp=0x", "127:", "  0:"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("FormatFrame output missing %q:\n%s", want, out)
		}
	}

	raw := FormatFrameRaw(&f.Raw)
	for _, want := range []string{"Block 1 ID: '1'", "Block 7 ID: '7'", "Ch 127:", "Ch 0:", "Frame end: 0x55 0xAA"} {
		if !bytes.Contains([]byte(raw), []byte(want)) {
			t.Errorf("FormatFrameRaw output missing %q", want)
		}
	}
}

func TestFormatRecording(t *testing.T) {
	rec, err := Decode(buildStream(1, 2, 5))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out := FormatRecording(rec)
	for _, want := range []string{"Logical frames:", "Missing frames:  " + fmt.Sprintf("%8d", 2), "Gaps:            " + fmt.Sprintf("%8d", 1)} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	r := NewReconciler()
	frames := []Frame{
		{Offset: 0, Raw: buildFrame(10)},
		{Offset: 400, Raw: buildFrame(11)},
		{Offset: 800, Raw: buildFrame(11)},
		{Offset: 1200, Raw: buildFrame(15)},
	}
	frames[3].Raw[offsetErrorFlags] = ErrorBufferOverflow

	for i := range frames {
		idx, gap := r.Next(frames[i].Raw.RecordNumber(), frames[i].Offset)
		s.Update(&frames[i], idx, gap)
	}

	if s.ValidFrames != 4 {
		t.Errorf("ValidFrames = %d, want 4", s.ValidFrames)
	}
	if s.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", s.Duplicates)
	}
	if s.MissingFrames != 3 || s.Gaps != 1 {
		t.Errorf("MissingFrames/Gaps = %d/%d, want 3/1", s.MissingFrames, s.Gaps)
	}
	if s.LogicalFrames != 6 {
		t.Errorf("LogicalFrames = %d, want 6", s.LogicalFrames)
	}
	if s.BufferOverflow != 1 {
		t.Errorf("BufferOverflow = %d, want 1", s.BufferOverflow)
	}
	if s.LossPercent() != 50 {
		t.Errorf("LossPercent = %.1f, want 50", s.LossPercent())
	}

	s.Reset()
	if s.ValidFrames != 0 || s.MissingFrames != 0 || s.LogicalFrames != 0 {
		t.Error("Reset should clear counters")
	}
}

func TestStatistics_AddRecording(t *testing.T) {
	buf := append([]byte{0x00, 0x01, 0x02}, buildStream(1, 2, 4)...)
	rec, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	s := NewStatistics()
	s.AddRecording(rec)

	if s.LogicalFrames != 4 || s.ValidFrames != 3 || s.MissingFrames != 1 {
		t.Errorf("counters = %d/%d/%d, want 4/3/1", s.LogicalFrames, s.ValidFrames, s.MissingFrames)
	}
	if s.SkippedBytes != 3 {
		t.Errorf("SkippedBytes = %d, want 3", s.SkippedBytes)
	}
	if !bytes.Contains([]byte(s.String()), []byte("Missing Frames:")) {
		t.Errorf("report should list missing frames:\n%s", s.String())
	}
}

// ============================================================
// Error Tests
// ============================================================

func TestUnknownCodeError(t *testing.T) {
	_, err := GainFromCode("9")
	var uce *UnknownCodeError
	if !errors.As(err, &uce) {
		t.Fatalf("expected UnknownCodeError, got %v", err)
	}
	if uce.Key != "gain" || uce.Code != "9" {
		t.Errorf("unexpected error fields: %+v", uce)
	}
}
