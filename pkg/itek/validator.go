// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import "fmt"

// AnomalyType represents different reasons a frame can be rejected or flagged
type AnomalyType int

const (
	AnomalyBadMarker AnomalyType = iota
	AnomalyRecordMismatch
	AnomalyBadTerminator
	AnomalyBufferOverflow
	AnomalyFIFOOverflow
)

// String returns a short name for the anomaly
func (a AnomalyType) String() string {
	switch a {
	case AnomalyBadMarker:
		return "BAD_MARKER"
	case AnomalyRecordMismatch:
		return "RECORD_MISMATCH"
	case AnomalyBadTerminator:
		return "BAD_TERMINATOR"
	case AnomalyBufferOverflow:
		return "BUFFER_OVERFLOW"
	case AnomalyFIFOOverflow:
		return "FIFO_OVERFLOW"
	default:
		return fmt.Sprintf("ANOMALY_%d", int(a))
	}
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Structural reports whether the anomaly makes the frame invalid. The other
// anomalies are flags reported by the amplifier inside a valid frame.
func (v *ValidationError) Structural() bool {
	switch v.Type {
	case AnomalyBadMarker, AnomalyRecordMismatch, AnomalyBadTerminator:
		return true
	}
	return false
}

// ValidateFrame lists every structural problem of a candidate frame and any
// overflow flags it carries. A frame is valid exactly when none of the
// returned errors is Structural.
func ValidateFrame(f *RawFrame) []ValidationError {
	errors := []ValidationError{}

	for i := range blocks {
		got := f[blocks[i].markerAt]
		if got != blocks[i].marker {
			errors = append(errors, ValidationError{
				Type:    AnomalyBadMarker,
				Message: fmt.Sprintf("Block %d marker at offset %d is 0x%02X (expected '%c')", i+1, blocks[i].markerAt, got, blocks[i].marker),
				Details: map[string]interface{}{"block": i + 1, "offset": blocks[i].markerAt, "value": got},
			})
		}
	}

	if f.RecordNumber() != f.SameRecordNumber() {
		errors = append(errors, ValidationError{
			Type:    AnomalyRecordMismatch,
			Message: fmt.Sprintf("Record number %d does not match trailing copy %d", f.RecordNumber(), f.SameRecordNumber()),
			Details: map[string]interface{}{"record": f.RecordNumber(), "same_record": f.SameRecordNumber()},
		})
	}

	hi, lo := f.Terminator()
	if hi != TerminatorHigh || lo != TerminatorLow {
		errors = append(errors, ValidationError{
			Type:    AnomalyBadTerminator,
			Message: fmt.Sprintf("Frame terminator is 0x%02X 0x%02X (expected 0x55 0xAA)", hi, lo),
			Details: map[string]interface{}{"high": hi, "low": lo},
		})
	}

	if f.BufferOverflow() {
		errors = append(errors, ValidationError{
			Type:    AnomalyBufferOverflow,
			Message: "Amplifier reported a buffer overflow",
			Details: map[string]interface{}{"error_flags": f.ErrorFlags()},
		})
	}

	if f.PrimaryFIFOOverflow() || f.BackupFIFOOverflow() {
		errors = append(errors, ValidationError{
			Type:    AnomalyFIFOOverflow,
			Message: fmt.Sprintf("FIFO overflow (primary=%t, backup=%t)", f.PrimaryFIFOOverflow(), f.BackupFIFOOverflow()),
			Details: map[string]interface{}{"status_flags": f.StatusFlags()},
		})
	}

	return errors
}
