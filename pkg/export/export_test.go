// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Thermoquad/itekstat/pkg/itek"
)

// testRecording decodes a short capture with one dropped frame
func testRecording(t *testing.T) *itek.Recording {
	t.Helper()
	var buf []byte
	for _, r := range []uint8{10, 11, 13} {
		ff := itek.FrameFields{RecordNumber: r, ParallelPort: r}
		for c := range ff.Channels {
			ff.Channels[c] = int32(c) - 64
		}
		f := itek.MustEncodeFrame(ff)
		buf = append(buf, f[:]...)
	}
	rec, err := itek.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return rec
}

// ============================================================
// CSV Tests
// ============================================================

func TestWriteCSV_Raw(t *testing.T) {
	rec := testRecording(t)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rec, CSVOptions{}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != itek.NumChannels+1 {
		t.Fatalf("got %d rows, want %d", len(lines), itek.NumChannels+1)
	}
	if lines[0] != "-64,-64,,-64" {
		t.Errorf("channel 0 row = %q", lines[0])
	}
	if lines[127] != "63,63,,63" {
		t.Errorf("channel 127 row = %q", lines[127])
	}
	if lines[128] != "10,11,,13" {
		t.Errorf("parallel port row = %q", lines[128])
	}
}

func TestWriteCSV_ScaledWithMissingValue(t *testing.T) {
	rec := testRecording(t)
	scales := make([]float64, itek.NumChannels)
	for i := range scales {
		scales[i] = 0.5
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rec, CSVOptions{Scales: scales, MissingValue: "NaN"}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if first != "-32,-32,NaN,-32" {
		t.Errorf("scaled channel 0 row = %q", first)
	}

	if err := WriteCSV(&buf, rec, CSVOptions{Scales: []float64{1}}); err == nil {
		t.Error("expected error for short scale list")
	}
}

func TestChannelScales(t *testing.T) {
	if ChannelScales(nil, nil) != nil {
		t.Error("no card info should mean no scales")
	}
	cards, _ := itek.ParseCardInfo(strings.NewReader("Card.1.gain=2\n"))
	chanMap, _ := itek.ChannelMap(itek.DefaultCardOrder)
	scales := ChannelScales(cards, chanMap)
	if scales[0] != itek.ScaleFactor(2000) {
		t.Errorf("channel 0 scale = %g, want gain 2000 scale", scales[0])
	}
	if scales[8] != itek.ScaleFactor(400) {
		t.Errorf("channel 8 scale = %g, want gain 400 scale", scales[8])
	}
}

// ============================================================
// Container Tests
// ============================================================

func TestBuildContainer_NoCardInfo(t *testing.T) {
	rec := testRecording(t)
	c, err := BuildContainer(rec, ContainerOptions{Names: map[int]string{3: "biceps"}, Source: "x.itf", Version: "test"})
	if err != nil {
		t.Fatalf("BuildContainer: %v", err)
	}
	if len(c.Channels) != itek.NumChannels {
		t.Fatalf("got %d channels, want all %d", len(c.Channels), itek.NumChannels)
	}
	ch := c.Channels[3]
	if ch.Gain != nil || ch.LPF != nil || ch.On != nil || ch.ScaleFactor != 1 {
		t.Errorf("attributes should be unknown: %+v", ch)
	}
	if cd, ok := c.Lookup("biceps"); !ok || cd.Channel != 3 {
		t.Error("alias lookup failed")
	}
	if _, ok := c.Lookup("channel_127"); !ok {
		t.Error("label lookup failed")
	}
	if len(c.IsMissing) != 4 || !c.IsMissing[2] {
		t.Errorf("IsMissing = %v", c.IsMissing)
	}
	if c.CaptureID == "" || c.SamplesPerSecond != itek.SamplesPerSecond {
		t.Errorf("root attributes not set: %+v", c)
	}
}

func TestBuildContainer_SkipsCardsThatAreOff(t *testing.T) {
	rec := testRecording(t)
	cards, _ := itek.ParseCardInfo(strings.NewReader("Card.0.on=true\nCard.0.gain=1\n"))

	c, err := BuildContainer(rec, ContainerOptions{Cards: cards})
	if err != nil {
		t.Fatalf("BuildContainer: %v", err)
	}
	// card 0 drives channels 8-15 in the default order
	if len(c.Channels) != 8 || c.Channels[0].Channel != 8 {
		t.Fatalf("unexpected channels %d, first %d", len(c.Channels), c.Channels[0].Channel)
	}
	if *c.Channels[0].Gain != 10000 || !*c.Channels[0].On {
		t.Errorf("card attributes not copied: %+v", c.Channels[0])
	}

	all, err := BuildContainer(rec, ContainerOptions{Cards: cards, AllChannels: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Channels) != itek.NumChannels {
		t.Errorf("AllChannels exported %d channels", len(all.Channels))
	}

	if _, err := BuildContainer(rec, ContainerOptions{CardOrder: []int{0, 1}}); err == nil {
		t.Error("expected error for bad card order")
	}
}

func TestContainer_RoundTrip(t *testing.T) {
	rec := testRecording(t)
	c, err := BuildContainer(rec, ContainerOptions{Source: "round.itf"})
	if err != nil {
		t.Fatal(err)
	}

	for _, comp := range []string{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(comp, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteContainer(&buf, c, comp); err != nil {
				t.Fatalf("WriteContainer: %v", err)
			}
			got, err := ReadContainer(&buf)
			if err != nil {
				t.Fatalf("ReadContainer: %v", err)
			}
			if got.CaptureID != c.CaptureID || got.Source != "round.itf" {
				t.Errorf("root fields differ: %+v", got)
			}
			if len(got.Channels) != len(c.Channels) {
				t.Fatalf("got %d channels, want %d", len(got.Channels), len(c.Channels))
			}
			if got.Channels[5].Data[3] != c.Channels[5].Data[3] {
				t.Error("channel data differs")
			}
			if !bytes.Equal(got.ParallelPort, c.ParallelPort) {
				t.Error("parallel port differs")
			}
		})
	}

	if err := WriteContainer(&bytes.Buffer{}, c, "lz4"); err == nil {
		t.Error("expected error for unknown compression")
	}
}

func TestReadContainer_Rejects(t *testing.T) {
	if _, err := ReadContainer(strings.NewReader("not cbor at all")); err == nil {
		t.Error("expected error for garbage input")
	}
}
