// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

// maxSpectrumSamples bounds the FFT length used for the peak frequency
const maxSpectrumSamples = 1 << 14

// ChannelSummary holds descriptive statistics of one channel. Values are in
// the units of the scale passed to Summarize.
type ChannelSummary struct {
	Channel int
	Samples int
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
	RMS     float64
	PeakHz  float64 // strongest non-DC spectral component
}

// ChannelValues returns the non-missing samples of a channel multiplied by scale
func ChannelValues(rec *itek.Recording, ch int, scale float64) []float64 {
	out := make([]float64, 0, len(rec.Records))
	for i := range rec.Records {
		if rec.Records[i].Missing {
			continue
		}
		out = append(out, float64(rec.Records[i].Channels[ch])*scale)
	}
	return out
}

// Summarize computes statistics for one channel. scale converts counts to
// the reported unit; pass 1 for raw counts.
func Summarize(rec *itek.Recording, ch int, scale float64) ChannelSummary {
	s := ChannelSummary{Channel: ch}
	x := ChannelValues(rec, ch, scale)
	s.Samples = len(x)
	if len(x) == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	if len(x) < 2 {
		s.StdDev = 0
	}
	s.Min = floats.Min(x)
	s.Max = floats.Max(x)
	s.RMS = floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
	s.PeakHz = peakFrequency(rec, ch, s.Mean/scaleOrOne(scale))
	return s
}

func scaleOrOne(scale float64) float64 {
	if scale == 0 {
		return 1
	}
	return scale
}

// peakFrequency returns the frequency of the largest spectral magnitude,
// excluding DC. Missing frames are filled with the channel mean so that the
// time base stays uniform.
func peakFrequency(rec *itek.Recording, ch int, mean float64) float64 {
	n := min(len(rec.Records), maxSpectrumSamples)
	if n < 4 {
		return 0
	}
	seq := make([]float64, n)
	for i := 0; i < n; i++ {
		r := &rec.Records[i]
		if r.Missing {
			continue
		}
		seq[i] = float64(r.Channels[ch]) - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, seq)
	best, bestMag := 0, 0.0
	for i := 1; i < len(coeffs); i++ {
		if m := cmplx.Abs(coeffs[i]); m > bestMag {
			best, bestMag = i, m
		}
	}
	if best == 0 {
		return 0
	}
	return fft.Freq(best) * itek.SamplesPerSecond
}

// SummarizeAll summarizes every listed channel, using the per-channel scale
// returned by scaleFor
func SummarizeAll(rec *itek.Recording, channels []int, scaleFor func(ch int) float64) []ChannelSummary {
	out := make([]ChannelSummary, 0, len(channels))
	for _, ch := range channels {
		out = append(out, Summarize(rec, ch, scaleFor(ch)))
	}
	return out
}
