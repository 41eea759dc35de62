// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package export

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

// ContainerFormat identifies itekstat containers
const ContainerFormat = "itekstat-container"

// ContainerVersion is the layout version written by this package
const ContainerVersion = 1

// Compression names accepted by WriteContainer
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	gzipMagic = []byte{0x1F, 0x8B}
)

// ChannelData is one exported channel with its card attributes. Gain, LPF
// and On are nil when no card info was available.
type ChannelData struct {
	Channel     int      `cbor:"channel"`
	Label       string   `cbor:"label"`
	Aliases     []string `cbor:"aliases,omitempty"`
	ScaleFactor float64  `cbor:"scale_factor"`
	Gain        *float64 `cbor:"gain"`
	LPF         *float64 `cbor:"lpf"`
	On          *bool    `cbor:"on"`
	Data        []int32  `cbor:"data"`
}

// Container is the exported form of a recording
type Container struct {
	Format           string  `cbor:"format"`
	Version          int     `cbor:"version"`
	CaptureID        string  `cbor:"capture_id"`
	Source           string  `cbor:"source"`
	CreatedAt        string  `cbor:"created_at"`
	ItekstatVersion  string  `cbor:"itekstat_version"`
	SamplesPerSecond float64 `cbor:"samples_per_second"`
	CardOrder        []int   `cbor:"card_order"`

	ValidFrames   int   `cbor:"valid_frames"`
	MissingFrames int   `cbor:"missing_frames"`
	SkippedBytes  int64 `cbor:"skipped_bytes"`

	ParallelPort []byte        `cbor:"parallel_port"`
	ErrorFlags   []byte        `cbor:"error_flags"`
	StatusFlags  []byte        `cbor:"status_flags"`
	TRRegister   []uint16      `cbor:"tr_register"`
	IsMissing    []bool        `cbor:"is_missing"`
	Channels     []ChannelData `cbor:"channels"`
}

// ContainerOptions controls which channels are exported and how they are named
type ContainerOptions struct {
	Cards       *itek.CardInfo
	CardOrder   []int
	AllChannels bool
	Names       map[int]string
	Source      string
	Version     string
}

// ChannelLabel returns the dataset label of a channel
func ChannelLabel(ch int) string {
	return fmt.Sprintf("channel_%03d", ch)
}

// BuildContainer converts a recording. Channels on cards that are off are
// left out unless AllChannels is set. Without card info every channel is
// exported with a scale factor of 1.
func BuildContainer(rec *itek.Recording, opts ContainerOptions) (*Container, error) {
	order := opts.CardOrder
	if order == nil {
		order = itek.DefaultCardOrder
	}
	chanMap, err := itek.ChannelMap(order)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Format:           ContainerFormat,
		Version:          ContainerVersion,
		CaptureID:        uuid.New().String(),
		Source:           opts.Source,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		ItekstatVersion:  opts.Version,
		SamplesPerSecond: itek.SamplesPerSecond,
		CardOrder:        append([]int(nil), order...),
		ValidFrames:      rec.ValidFrames,
		MissingFrames:    rec.MissingFrames,
		SkippedBytes:     rec.SkippedBytes,
		ParallelPort:     rec.ParallelPort(),
		ErrorFlags:       rec.ErrorFlags(),
		StatusFlags:      rec.StatusFlags(),
		TRRegister:       rec.TRRegister(),
		IsMissing:        rec.MissingMask(),
	}

	for ch := 0; ch < itek.NumChannels; ch++ {
		cd := ChannelData{
			Channel:     ch,
			Label:       ChannelLabel(ch),
			ScaleFactor: 1,
		}
		if opts.Cards != nil {
			card := opts.Cards.ChannelCard(chanMap, ch)
			if !card.On && !opts.AllChannels {
				continue
			}
			gain, lpf, on := card.Gain, card.LPF, card.On
			cd.Gain, cd.LPF, cd.On = &gain, &lpf, &on
			cd.ScaleFactor = card.ScaleFactor()
		}
		if name, ok := opts.Names[ch]; ok {
			cd.Aliases = append(cd.Aliases, name)
		}
		cd.Data = rec.Channel(ch)
		c.Channels = append(c.Channels, cd)
	}
	return c, nil
}

// Lookup finds a channel by label or alias
func (c *Container) Lookup(name string) (*ChannelData, bool) {
	for i := range c.Channels {
		cd := &c.Channels[i]
		if cd.Label == name {
			return cd, true
		}
		for _, a := range cd.Aliases {
			if a == name {
				return cd, true
			}
		}
	}
	return nil, false
}

// WriteContainer encodes c as CBOR and compresses it
func WriteContainer(w io.Writer, c *Container, compression string) error {
	var (
		zw  io.WriteCloser
		err error
	)
	switch compression {
	case CompressionZstd:
		zw, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
	case CompressionGzip:
		zw = gzip.NewWriter(w)
	case CompressionNone, "":
		zw = nopWriteCloser{w}
	default:
		return fmt.Errorf("unknown compression %q", compression)
	}

	if err := cbor.NewEncoder(zw).Encode(c); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode container: %w", err)
	}
	return zw.Close()
}

// ReadContainer decodes a container, detecting the compression from its
// leading bytes
func ReadContainer(r io.Reader) (*Container, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))

	var src io.Reader = br
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		src = zr
	case bytes.HasPrefix(head, gzipMagic):
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gr.Close()
		src = gr
	}

	var c Container
	if err := cbor.NewDecoder(src).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode container: %w", err)
	}
	if c.Format != ContainerFormat {
		return nil, fmt.Errorf("not an itekstat container (format %q)", c.Format)
	}
	return &c, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
