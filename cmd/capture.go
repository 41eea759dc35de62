// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"io/fs"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

// loadCapture decodes a capture file and its companion card info. Missing
// card info is not an error; the returned CardInfo is nil in that case.
func loadCapture(path string) (*itek.Recording, *itek.CardInfo, error) {
	logger.Debug().Str("file", path).Msg("reading capture")

	rec, err := newDecoder().DecodeFile(path)
	if err != nil {
		return nil, nil, err
	}

	cards, err := itek.LoadCardInfo(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("file", path).Msg("no card info found, using raw counts")
		return rec, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	for _, line := range cards.Ignored {
		logger.Debug().Str("line", line).Msg("ignored card info line")
	}

	logger.Debug().
		Int("logical_frames", rec.Len()).
		Int("valid_frames", rec.ValidFrames).
		Int("missing_frames", rec.MissingFrames).
		Msg("decoded capture")
	return rec, cards, nil
}
