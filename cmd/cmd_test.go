// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/itekstat/pkg/config"
	"github.com/Thermoquad/itekstat/pkg/export"
	"github.com/Thermoquad/itekstat/pkg/itek"
)

// resetFlags restores every flag of c and its subcommands to its default
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCommand executes the root command with args and an isolated config file
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "config.yaml"), "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// writeCapture writes a synthetic capture and returns its path
func writeCapture(t *testing.T, opts itek.SynthOptions) string {
	t.Helper()
	data, _ := itek.Synthesize(opts)
	path := filepath.Join(t.TempDir(), "capture.itf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSynthCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synth.itf")
	out, err := runCommand(t, "synth", path, "--frames", "20", "--seed", "3")
	if err != nil {
		t.Fatalf("synth failed: %v", err)
	}
	if !strings.Contains(out, "20 frames") {
		t.Errorf("unexpected output: %q", out)
	}

	rec, err := itek.NewDecoder().DecodeFile(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rec.Len() != 20 || rec.MissingFrames != 0 {
		t.Errorf("Len() = %d, missing = %d, want 20 and 0", rec.Len(), rec.MissingFrames)
	}
}

func TestSynthRejectsLongTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synth.itf")
	if _, err := runCommand(t, "synth", path, "--tail", "400"); err == nil {
		t.Error("expected error for a tail of a full frame")
	}
}

func TestCSVCommand(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 30, Amplitude: 1000, FrequencyHz: 10, Seed: 1})
	csvPath := filepath.Join(t.TempDir(), "out.csv")

	if _, err := runCommand(t, "csv", capture, csvPath); err != nil {
		t.Fatalf("csv failed: %v", err)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != itek.NumChannels+1 {
		t.Fatalf("got %d rows, want %d", len(lines), itek.NumChannels+1)
	}
	for i, line := range lines {
		if n := len(strings.Split(line, ",")); n != 30 {
			t.Fatalf("row %d has %d columns, want 30", i, n)
		}
	}
}

func TestCSVCommandMissingValue(t *testing.T) {
	var buf bytes.Buffer
	for _, rn := range []uint8{0, 1, 3} {
		raw := itek.MustEncodeFrame(itek.FrameFields{RecordNumber: rn})
		buf.Write(raw[:])
	}
	capture := filepath.Join(t.TempDir(), "gap.itf")
	if err := os.WriteFile(capture, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "csv", capture, "--missing-value", "NaN")
	if err != nil {
		t.Fatalf("csv failed: %v", err)
	}
	first := strings.SplitN(out, "\n", 2)[0]
	if first != "0,0,NaN,0" {
		t.Errorf("first row = %q, want %q", first, "0,0,NaN,0")
	}
}

func TestCSVCommandScalesWithCardInfo(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "scaled.itf")
	raw := itek.MustEncodeFrame(itek.FrameFields{Channels: [itek.NumChannels]int32{0: 1000}})
	if err := os.WriteFile(capture, raw[:], 0o644); err != nil {
		t.Fatal(err)
	}
	ita := "Card.1.on=true\nCard.1.gain=0\nCard.1.lpf=0\n"
	if err := os.WriteFile(capture+".ita", []byte(ita), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "csv", capture)
	if err != nil {
		t.Fatalf("csv failed: %v", err)
	}
	first := strings.SplitN(out, "\n", 2)[0]
	if first == "1000" {
		t.Errorf("channel 0 was not scaled: %q", first)
	}

	out, err = runCommand(t, "csv", capture, "--raw")
	if err != nil {
		t.Fatalf("csv --raw failed: %v", err)
	}
	if first := strings.SplitN(out, "\n", 2)[0]; first != "1000" {
		t.Errorf("raw channel 0 = %q, want 1000", first)
	}
}

func TestExportCommand(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 25, Amplitude: 500, FrequencyHz: 5, Seed: 2})
	outPath := filepath.Join(t.TempDir(), "out.itkc")

	if _, err := runCommand(t, "export", capture, outPath, "--compress", "gzip", "--channel-names", "0:left,1:right"); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	c, err := export.ReadContainer(f)
	if err != nil {
		t.Fatalf("ReadContainer failed: %v", err)
	}
	if len(c.Channels) != itek.NumChannels {
		t.Errorf("got %d channels, want %d", len(c.Channels), itek.NumChannels)
	}
	if c.ItekstatVersion != Version {
		t.Errorf("version = %q, want %q", c.ItekstatVersion, Version)
	}
	if _, ok := c.Lookup("left"); !ok {
		t.Error("alias left not found")
	}
	if len(c.IsMissing) != 25 {
		t.Errorf("is_missing has %d entries, want 25", len(c.IsMissing))
	}
}

func TestExportCommandBadChannelNames(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 2, Seed: 1})
	outPath := filepath.Join(t.TempDir(), "out.itkc")
	if _, err := runCommand(t, "export", capture, outPath, "--channel-names", "left"); err == nil {
		t.Error("expected error for malformed --channel-names")
	}
}

func TestClipStatsCommand(t *testing.T) {
	var buf bytes.Buffer
	for rn := range 4 {
		ff := itek.FrameFields{RecordNumber: uint8(rn)}
		if rn%2 == 0 {
			ff.Channels[5] = itek.MaxCode
		}
		raw := itek.MustEncodeFrame(ff)
		buf.Write(raw[:])
	}
	capture := filepath.Join(t.TempDir(), "clip.itf")
	if err := os.WriteFile(capture, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "clip_stats", capture, "--channels", "5,6")
	if err != nil {
		t.Fatalf("clip_stats failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "filename") {
		t.Errorf("missing header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "50.0000") {
		t.Errorf("channel 5 line = %q, want 50%% clipped", lines[1])
	}
	if !strings.Contains(lines[2], "0.0000") {
		t.Errorf("channel 6 line = %q, want 0%% clipped", lines[2])
	}
}

func TestDumpCommand(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 5, Seed: 1})

	out, err := runCommand(t, "dump", capture, "--limit", "2")
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if !strings.Contains(out, "Frame 0\n") || !strings.Contains(out, "Frame 1\n") {
		t.Errorf("missing frames in output:\n%s", out)
	}
	if strings.Contains(out, "Frame 2\n") {
		t.Error("--limit 2 printed a third frame")
	}
}

func TestDumpCommandReportsSkippedBytes(t *testing.T) {
	raw := itek.MustEncodeFrame(itek.FrameFields{RecordNumber: 7})
	data := append([]byte{0xDE, 0xAD, 0xBE}, raw[:]...)
	capture := filepath.Join(t.TempDir(), "junk.itf")
	if err := os.WriteFile(capture, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "dump", capture, "--invalid", "--raw")
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	if !strings.Contains(out, "skipped 3 bytes at 0") {
		t.Errorf("skipped run not reported:\n%s", out)
	}
	if !strings.Contains(out, "Block 1 ID: '1'") {
		t.Errorf("raw block dump missing:\n%s", out)
	}
}

func TestDumpCommandNoFrames(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "empty.itf")
	if err := os.WriteFile(capture, make([]byte, 1000), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runCommand(t, "dump", capture)
	if !errors.Is(err, itek.ErrNoValidFrame) {
		t.Errorf("err = %v, want ErrNoValidFrame", err)
	}
}

func TestInfoCommand(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 200, DropRate: 0.1, Amplitude: 1000, FrequencyHz: 20, Seed: 9})

	out, err := runCommand(t, "info", capture, "--channels", "0,1", "--gaps")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, want := range []string{"Logical frames:", "Missing frames:", "Channels (counts):", "peak_hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoCommandBadCardMap(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 2, Seed: 1})
	if _, err := runCommand(t, "info", capture, "--card-map", "0,0,1"); err == nil {
		t.Error("expected error for an invalid card map")
	}
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "--port", "/dev/ttyUSB3", "config", "init"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Serial.Port != "/dev/ttyUSB3" {
		t.Errorf("Serial.Port = %q, want /dev/ttyUSB3", loaded.Serial.Port)
	}

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--config", path, "config", "init"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error when the config file exists")
	}

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--config", path, "config", "init", "--force"})
	if err := rootCmd.Execute(); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}
}

func TestMonitorTextModeReplay(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 40, DropRate: 0.2, JunkRate: 0.1, MaxJunk: 16, Seed: 4})

	out, err := runCommand(t, "monitor", "--tui=false", "--replay", capture, "--stats-interval", "60")
	if err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if !strings.Contains(out, "[SYNC] Synchronized") {
		t.Errorf("no sync message:\n%s", out)
	}
	if !strings.Contains(out, "Logical Frames:") {
		t.Errorf("no final statistics:\n%s", out)
	}
}

func TestRecordCommandReplay(t *testing.T) {
	capture := writeCapture(t, itek.SynthOptions{Frames: 30, Seed: 5})
	outPath := filepath.Join(t.TempDir(), "recorded.itf")

	if _, err := runCommand(t, "record", outPath, "--replay", capture); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	want, _ := os.ReadFile(capture)
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("recorded %d bytes, want an exact copy of %d bytes", len(got), len(want))
	}
}

func TestOpenConnectionRequiresSource(t *testing.T) {
	resetFlags(rootCmd)
	if _, _, err := OpenConnection(""); err == nil {
		t.Error("expected error with no connection flags")
	}
}

func TestFrameTrackerEvents(t *testing.T) {
	var stream bytes.Buffer
	for _, rn := range []uint8{0, 1} {
		raw := itek.MustEncodeFrame(itek.FrameFields{RecordNumber: rn})
		stream.Write(raw[:])
	}
	stream.Write([]byte{1, 2, 3, 4, 5})
	for _, rn := range []uint8{2, 5, 5} {
		raw := itek.MustEncodeFrame(itek.FrameFields{RecordNumber: rn})
		stream.Write(raw[:])
	}

	tracker := newFrameTracker()
	var frames, syncLost, duplicates int
	var gaps []itek.Gap
	data := stream.Bytes()
	for len(data) > 0 {
		n := min(37, len(data))
		tracker.Feed(data[:n], func(ev linkEvent) {
			switch {
			case ev.syncLost:
				syncLost++
			case ev.frame != nil:
				frames++
				if ev.gap != nil {
					gaps = append(gaps, *ev.gap)
				}
				if ev.duplicate {
					duplicates++
				}
			}
		})
		data = data[n:]
	}

	if frames != 5 {
		t.Errorf("frames = %d, want 5", frames)
	}
	if syncLost != 1 {
		t.Errorf("sync lost %d times, want 1", syncLost)
	}
	if duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", duplicates)
	}
	if len(gaps) != 1 || gaps[0].Missing != 2 || gaps[0].StartIndex != 2 {
		t.Errorf("gaps = %+v, want one gap of 2 after index 2", gaps)
	}
	if tracker.stats.SkippedBytes != 5 {
		t.Errorf("SkippedBytes = %d, want 5", tracker.stats.SkippedBytes)
	}
	if tracker.stats.LogicalFrames != 6 {
		t.Errorf("LogicalFrames = %d, want 6", tracker.stats.LogicalFrames)
	}
}
