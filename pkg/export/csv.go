// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package export writes decoded recordings to CSV and to compressed CBOR
// containers.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

// CSVOptions controls CSV output
type CSVOptions struct {
	// Scales holds the microvolt per count factor of every channel. When nil
	// raw counts are written.
	Scales []float64
	// MissingValue is written in place of samples of missing frames
	MissingValue string
}

// ChannelScales returns the scale factor of every channel under a card map.
// Without card info every scale is nil.
func ChannelScales(cards *itek.CardInfo, channelMap []int) []float64 {
	if cards == nil {
		return nil
	}
	out := make([]float64, itek.NumChannels)
	for ch := range out {
		out[ch] = cards.ChannelCard(channelMap, ch).ScaleFactor()
	}
	return out
}

// WriteCSV writes one row per channel followed by a parallel port row. Each
// column is one logical frame.
func WriteCSV(w io.Writer, rec *itek.Recording, opts CSVOptions) error {
	if opts.Scales != nil && len(opts.Scales) != itek.NumChannels {
		return fmt.Errorf("got %d channel scales, want %d", len(opts.Scales), itek.NumChannels)
	}

	bw := bufio.NewWriterSize(w, 1<<16)
	var num []byte

	for ch := 0; ch < itek.NumChannels; ch++ {
		for i := range rec.Records {
			if i > 0 {
				bw.WriteByte(',')
			}
			r := &rec.Records[i]
			if r.Missing {
				bw.WriteString(opts.MissingValue)
				continue
			}
			if opts.Scales == nil {
				num = strconv.AppendInt(num[:0], int64(r.Channels[ch]), 10)
			} else {
				num = strconv.AppendFloat(num[:0], float64(r.Channels[ch])*opts.Scales[ch], 'g', -1, 64)
			}
			bw.Write(num)
		}
		bw.WriteByte('\n')
	}

	for i := range rec.Records {
		if i > 0 {
			bw.WriteByte(',')
		}
		if rec.Records[i].Missing {
			bw.WriteString(opts.MissingValue)
			continue
		}
		num = strconv.AppendUint(num[:0], uint64(rec.Records[i].ParallelPort), 10)
		bw.Write(num)
	}
	bw.WriteByte('\n')

	return bw.Flush()
}
