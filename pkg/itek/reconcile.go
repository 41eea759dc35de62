// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

// Reconciler turns the wrapping 8-bit record counter of successive valid
// frames into a monotonically non-decreasing logical frame index.
//
// The index advances by the forward distance (b - a) mod 256 between two
// consecutive counters. A run of 256 or more lost frames aliases onto a
// smaller distance and cannot be detected from the counter alone.
type Reconciler struct {
	index      int
	last       uint8
	lastOffset int64
	started    bool
}

// NewReconciler creates a reconciler whose first frame maps to index 0
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reset forgets all previous frames
func (r *Reconciler) Reset() {
	*r = Reconciler{}
}

// Index returns the logical index assigned to the most recent frame
func (r *Reconciler) Index() int {
	return r.index
}

// Next assigns a logical index to the frame with the given record counter,
// found at the given byte offset. A non-nil Gap is returned when one or more
// frames are missing before this one, or when the byte distance to the
// previous frame suggests the counter wrapped more than once.
// A zero distance is a duplicate and maps onto the previous index.
func (r *Reconciler) Next(recordNumber uint8, offset int64) (int, *Gap) {
	if !r.started {
		r.started = true
		r.index = 0
		r.last = recordNumber
		r.lastOffset = offset
		return 0, nil
	}

	delta := int(uint8(recordNumber - r.last))
	span := (offset - r.lastOffset) / FrameSize
	prev := r.index

	r.index += delta
	r.last = recordNumber
	r.lastOffset = offset

	if delta == 0 {
		return r.index, nil
	}

	ambiguous := span > int64(delta)
	if delta == 1 && !ambiguous {
		return r.index, nil
	}

	return r.index, &Gap{
		StartIndex: prev,
		Missing:    delta - 1,
		Offset:     offset,
		Ambiguous:  ambiguous,
		SpanFrames: span,
	}
}

// ReconcileRecordNumbers assigns logical indices to an ordered sequence of
// valid frames. The first frame maps to 0. It also returns the gaps found
// between consecutive frames.
func ReconcileRecordNumbers(frames []Frame) ([]int, []Gap) {
	indices := make([]int, len(frames))
	var gaps []Gap
	r := NewReconciler()
	for i := range frames {
		idx, gap := r.Next(frames[i].Raw.RecordNumber(), frames[i].Offset)
		indices[i] = idx
		if gap != nil {
			gaps = append(gaps, *gap)
		}
	}
	return indices, gaps
}
