// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

// RawFrame is the byte-exact 400 byte frame as it appears on the wire
type RawFrame [FrameSize]byte

// Frame is a valid raw frame together with its byte offset in the source stream
type Frame struct {
	Offset int64
	Raw    RawFrame
}

// frameFromBytes copies the first FrameSize bytes of b into a RawFrame
func frameFromBytes(b []byte) RawFrame {
	var f RawFrame
	copy(f[:], b[:FrameSize])
	return f
}

// RecordNumber returns the leading 8-bit record counter
func (f *RawFrame) RecordNumber() uint8 {
	return f[offsetRecordNumber]
}

// SameRecordNumber returns the trailing copy of the record counter
func (f *RawFrame) SameRecordNumber() uint8 {
	return f[offsetSameRecordNumber]
}

// ErrorFlags returns the error flag byte
func (f *RawFrame) ErrorFlags() uint8 {
	return f[offsetErrorFlags]
}

// StatusFlags returns the status flag byte
func (f *RawFrame) StatusFlags() uint8 {
	return f[offsetStatusFlags]
}

// ParallelPort returns the parallel port input byte
func (f *RawFrame) ParallelPort() uint8 {
	return f[offsetParallelPort]
}

// TRRegister returns the two byte TR register, most significant byte first
func (f *RawFrame) TRRegister() uint16 {
	return uint16(f[offsetTRRegister])<<8 | uint16(f[offsetTRRegister+1])
}

// Terminator returns the two trailing bytes
func (f *RawFrame) Terminator() (byte, byte) {
	return f[offsetTerminator], f[offsetTerminator+1]
}

// BufferOverflow reports whether the amplifier flagged a buffer overflow
func (f *RawFrame) BufferOverflow() bool {
	return f.ErrorFlags()&ErrorBufferOverflow != 0
}

// PrimaryRecordKey returns the two bit primary record key from the status byte
func (f *RawFrame) PrimaryRecordKey() uint8 {
	return f.StatusFlags() & (StatusPRKLSB | StatusPRKMSB)
}

// BackupRecordKey returns the two bit backup record key from the status byte
func (f *RawFrame) BackupRecordKey() uint8 {
	return (f.StatusFlags() & (StatusBRKLSB | StatusBRKMSB)) >> 3
}

// PrimaryFIFOOverflow reports the PFOSD status bit
func (f *RawFrame) PrimaryFIFOOverflow() bool {
	return f.StatusFlags()&StatusPFOSD != 0
}

// BackupFIFOOverflow reports the BFOSD status bit
func (f *RawFrame) BackupFIFOOverflow() bool {
	return f.StatusFlags()&StatusBFOSD != 0
}

// Valid reports whether the frame passes every structural check: all seven
// block markers, matching record counters and the 0x55 0xAA terminator.
func (f *RawFrame) Valid() bool {
	for i := range blocks {
		if f[blocks[i].markerAt] != blocks[i].marker {
			return false
		}
	}
	if f[offsetRecordNumber] != f[offsetSameRecordNumber] {
		return false
	}
	return f[offsetTerminator] == TerminatorHigh && f[offsetTerminator+1] == TerminatorLow
}

// validAt reports whether buf holds a valid frame starting at off
func validAt(buf []byte, off int) bool {
	if off < 0 || len(buf)-off < FrameSize {
		return false
	}
	b := buf[off : off+FrameSize]
	for i := range blocks {
		if b[blocks[i].markerAt] != blocks[i].marker {
			return false
		}
	}
	if b[offsetRecordNumber] != b[offsetSameRecordNumber] {
		return false
	}
	return b[offsetTerminator] == TerminatorHigh && b[offsetTerminator+1] == TerminatorLow
}
