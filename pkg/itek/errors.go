// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import (
	"errors"
	"fmt"
)

// ErrNoValidFrame is returned when a buffer contains no valid frame at any offset
var ErrNoValidFrame = errors.New("no valid frame found")

// UnknownCodeError is returned when a card metadata value has no table entry
type UnknownCodeError struct {
	Key  string
	Code string
}

// Error implements the error interface
func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown %s code %q", e.Key, e.Code)
}

// Gap describes a jump of more than one logical index between two
// consecutive valid frames.
type Gap struct {
	// StartIndex is the logical index of the frame before the gap
	StartIndex int
	// Missing is the number of logical frames absent between the two frames
	Missing int
	// Offset is the byte offset of the frame after the gap
	Offset int64
	// Ambiguous is set when the byte distance between the two frames spans
	// more frame slots than the 8-bit counter delta accounts for. The
	// counter may have wrapped one or more extra times.
	Ambiguous bool
	// SpanFrames is the byte distance between the two frames in whole frames
	SpanFrames int64
}

// String returns a short description of the gap
func (g Gap) String() string {
	s := fmt.Sprintf("after index %d: %d missing (offset %d)", g.StartIndex, g.Missing, g.Offset)
	if g.Ambiguous {
		s += fmt.Sprintf(" AMBIGUOUS: byte span covers %d frame slots", g.SpanFrames)
	}
	return s
}
