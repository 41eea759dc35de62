// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package itek decodes the fixed-size binary frame stream produced by the
// Itek 128 channel EMG amplifier.
//
// A capture is a sequence of 400 byte frames. Each frame carries an 8-bit
// record counter, status bytes and 128 big-endian 24-bit samples split into
// seven marker-delimited blocks. This package locates valid frames in a
// possibly corrupted byte stream, decodes the samples into int32 and
// reconstructs a dense logical frame index from the wrapping counter so that
// dropped frames show up as explicit gaps.
package itek

// Frame geometry
const (
	FrameSize       = 400
	NumChannels     = 128
	BytesPerSample  = 3
	NumCards        = 16
	ChannelsPerCard = 8
	NumBlocks       = 7
)

// Frame trailer bytes
const (
	TerminatorHigh = 0x55
	TerminatorLow  = 0xAA
)

// Byte offsets within a raw frame
const (
	offsetRecordNumber     = 1
	offsetErrorFlags       = 2
	offsetStatusFlags      = 3
	offsetParallelPort     = 4
	offsetTRRegister       = 5
	offsetSameRecordNumber = 397
	offsetTerminator       = 398
)

// block describes one marker-delimited group of sample words.
// Words inside a block run from the highest channel down.
type block struct {
	marker      byte
	markerAt    int
	dataAt      int
	highChannel int
	count       int
}

// blocks is the fixed block layout of a frame, in wire order
var blocks = [NumBlocks]block{
	{marker: '1', markerAt: 0, dataAt: 7, highChannel: 127, count: 19},
	{marker: '2', markerAt: 64, dataAt: 65, highChannel: 108, count: 20},
	{marker: '3', markerAt: 125, dataAt: 126, highChannel: 88, count: 20},
	{marker: '4', markerAt: 186, dataAt: 187, highChannel: 68, count: 20},
	{marker: '5', markerAt: 247, dataAt: 248, highChannel: 48, count: 20},
	{marker: '6', markerAt: 308, dataAt: 309, highChannel: 28, count: 20},
	{marker: '7', markerAt: 369, dataAt: 370, highChannel: 8, count: 9},
}

// Error flag bits (frame byte 2)
const (
	ErrorBufferOverflow = 0x01
)

// Status flag bits (frame byte 3)
const (
	StatusPRKLSB = 0x01 // primary record key, low bit
	StatusPRKMSB = 0x02 // primary record key, high bit
	StatusPFOSD  = 0x04 // primary FIFO overflow status
	StatusBRKLSB = 0x08 // backup record key, low bit
	StatusBRKMSB = 0x10 // backup record key, high bit
	StatusBFOSD  = 0x20 // backup FIFO overflow status
)

// Sampling and analog front end constants
const (
	// SamplePeriodMillis is the time between two consecutive frames.
	SamplePeriodMillis = 2.048
	// SamplesPerSecond is the nominal frame rate of the amplifier.
	SamplesPerSecond = 1000.0 / SamplePeriodMillis
	// BytesPerSecond is the nominal raw link rate.
	BytesPerSecond = FrameSize * SamplesPerSecond

	VRef    = 2.5
	BitRes  = 1<<23 - 1
	MicroV  = 1e6
	MaxCode = 1<<23 - 1
	MinCode = -(1 << 23)
)

// recordCounterModulo is the wrap point of the 8-bit record counter
const recordCounterModulo = 256
