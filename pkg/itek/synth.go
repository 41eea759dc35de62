// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import (
	"bytes"
	"math"
	"math/rand"
)

// SynthOptions controls synthetic capture generation
type SynthOptions struct {
	Frames       int     // logical frames to generate, including dropped ones
	StartRecord  uint8   // record counter of the first frame
	DropRate     float64 // probability that a frame is left out
	JunkRate     float64 // probability that junk bytes precede a frame
	MaxJunk      int     // upper bound on a junk run
	Amplitude    int32   // peak sample value
	FrequencyHz  float64 // test tone frequency
	TailBytes    int     // bytes of a partial frame appended at the end
	Seed         int64
	ParallelPort func(index int) uint8
}

// SynthReport describes what Synthesize actually wrote
type SynthReport struct {
	Written   int
	Dropped   int
	JunkBytes int
	TailBytes int
}

// Synthesize generates a capture holding a sine test tone on every channel,
// with randomly dropped frames and junk inserted between frames. The first
// frame is never dropped.
func Synthesize(opts SynthOptions) ([]byte, SynthReport) {
	rng := rand.New(rand.NewSource(opts.Seed))
	var rep SynthReport
	var buf bytes.Buffer

	amp := opts.Amplitude
	if amp > MaxCode {
		amp = MaxCode
	}

	for i := 0; i < opts.Frames; i++ {
		if i > 0 && opts.DropRate > 0 && rng.Float64() < opts.DropRate {
			rep.Dropped++
			continue
		}
		if opts.JunkRate > 0 && opts.MaxJunk > 0 && rng.Float64() < opts.JunkRate {
			n := 1 + rng.Intn(opts.MaxJunk)
			junk := make([]byte, n)
			rng.Read(junk)
			buf.Write(junk)
			rep.JunkBytes += n
		}

		ff := FrameFields{RecordNumber: opts.StartRecord + uint8(i)}
		if opts.ParallelPort != nil {
			ff.ParallelPort = opts.ParallelPort(i)
		}
		t := float64(i) / SamplesPerSecond
		for ch := range ff.Channels {
			phase := 2 * math.Pi * float64(ch) / NumChannels
			ff.Channels[ch] = int32(float64(amp) * math.Sin(2*math.Pi*opts.FrequencyHz*t+phase))
		}
		f := MustEncodeFrame(ff)
		buf.Write(f[:])
		rep.Written++
	}

	if opts.TailBytes > 0 {
		n := min(opts.TailBytes, FrameSize-1)
		buf.Write(make([]byte, n))
		rep.TailBytes = n
	}
	return buf.Bytes(), rep
}
