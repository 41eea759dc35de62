// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package analysis computes per-channel statistics over decoded recordings.
package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

// SelectionMode picks which channels a report covers
type SelectionMode int

const (
	SelectOn SelectionMode = iota
	SelectAll
	SelectList
)

// ChannelSelection is a parsed --channels argument
type ChannelSelection struct {
	Mode     SelectionMode
	Channels []int
}

// ParseChannelSelection accepts "on", "all" or a comma separated channel list
func ParseChannelSelection(s string) (ChannelSelection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "on":
		return ChannelSelection{Mode: SelectOn}, nil
	case "all":
		return ChannelSelection{Mode: SelectAll}, nil
	}

	sel := ChannelSelection{Mode: SelectList}
	for _, f := range strings.Split(s, ",") {
		ch, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return sel, fmt.Errorf("bad channel %q: %w", f, err)
		}
		if ch < 0 || ch >= itek.NumChannels {
			return sel, fmt.Errorf("channel %d out of range 0-%d", ch, itek.NumChannels-1)
		}
		sel.Channels = append(sel.Channels, ch)
	}
	return sel, nil
}

// Resolve returns the channels selected. Without card info every channel
// counts as on.
func (s ChannelSelection) Resolve(cards *itek.CardInfo, channelMap []int) []int {
	switch s.Mode {
	case SelectList:
		return append([]int(nil), s.Channels...)
	case SelectOn:
		if cards != nil {
			var out []int
			for ch := 0; ch < itek.NumChannels; ch++ {
				if cards.ChannelCard(channelMap, ch).On {
					out = append(out, ch)
				}
			}
			return out
		}
	}
	out := make([]int, itek.NumChannels)
	for i := range out {
		out[i] = i
	}
	return out
}

// IsClipped reports whether a sample sits at either rail of the converter
func IsClipped(v int32) bool {
	return v >= itek.MaxCode || v <= itek.MinCode
}

// ClipStat is the clipping share of one channel
type ClipStat struct {
	Channel int
	Clipped int
	Samples int
	Percent float64
}

// ClipPercent counts clipped samples of a channel, ignoring missing frames
func ClipPercent(rec *itek.Recording, ch int) ClipStat {
	st := ClipStat{Channel: ch}
	for i := range rec.Records {
		r := &rec.Records[i]
		if r.Missing {
			continue
		}
		st.Samples++
		if IsClipped(r.Channels[ch]) {
			st.Clipped++
		}
	}
	if st.Samples > 0 {
		st.Percent = float64(st.Clipped) * 100.0 / float64(st.Samples)
	}
	return st
}

// ClipStats computes clipping for each listed channel
func ClipStats(rec *itek.Recording, channels []int) []ClipStat {
	out := make([]ClipStat, 0, len(channels))
	for _, ch := range channels {
		out = append(out, ClipPercent(rec, ch))
	}
	return out
}
