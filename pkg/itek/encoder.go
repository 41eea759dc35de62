// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import "fmt"

// FrameFields holds the decoded content of one frame
type FrameFields struct {
	RecordNumber uint8
	ErrorFlags   uint8
	StatusFlags  uint8
	ParallelPort uint8
	TRRegister   uint16
	Channels     [NumChannels]int32
}

// EncodeFrame builds the wire form of a frame. It is the inverse of
// DecodeFrame for samples within the signed 24-bit range.
func EncodeFrame(ff FrameFields) (RawFrame, error) {
	var f RawFrame

	for ch, v := range ff.Channels {
		if v > MaxCode || v < MinCode {
			return f, fmt.Errorf("channel %d sample %d out of 24-bit range", ch, v)
		}
	}

	for i := range blocks {
		blk := &blocks[i]
		f[blk.markerAt] = blk.marker
		for w := 0; w < blk.count; w++ {
			at := blk.dataAt + w*BytesPerSample
			v := uint32(ff.Channels[blk.highChannel-w])
			f[at] = byte(v >> 16)
			f[at+1] = byte(v >> 8)
			f[at+2] = byte(v)
		}
	}

	f[offsetRecordNumber] = ff.RecordNumber
	f[offsetErrorFlags] = ff.ErrorFlags
	f[offsetStatusFlags] = ff.StatusFlags
	f[offsetParallelPort] = ff.ParallelPort
	f[offsetTRRegister] = byte(ff.TRRegister >> 8)
	f[offsetTRRegister+1] = byte(ff.TRRegister)
	f[offsetSameRecordNumber] = ff.RecordNumber
	f[offsetTerminator] = TerminatorHigh
	f[offsetTerminator+1] = TerminatorLow
	return f, nil
}

// MustEncodeFrame is like EncodeFrame but panics on out of range samples
func MustEncodeFrame(ff FrameFields) RawFrame {
	f, err := EncodeFrame(ff)
	if err != nil {
		panic(err)
	}
	return f
}
