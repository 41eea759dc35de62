// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package itek

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Card metadata code tables
var (
	gainCodes = map[string]float64{
		"0": 400,
		"1": 10000,
		"2": 2000,
	}
	lpfCodes = map[string]float64{
		"0": 100,
		"1": 300,
	}
	onCodes = map[string]bool{
		"true":  true,
		"false": false,
	}
)

// DefaultCardOrder is the card to channel block order of the usual wiring,
// in which the first two cards are swapped.
var DefaultCardOrder = []int{1, 0, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// Card holds the amplifier settings of one 8 channel card
type Card struct {
	On   bool
	Gain float64 // amplification factor
	LPF  float64 // low pass filter cutoff in Hz

	// Configured is set once any key for the card was read
	Configured bool
}

// ScaleFactor returns the microvolts per count for the card's gain
func (c Card) ScaleFactor() float64 {
	return ScaleFactor(c.Gain)
}

// CardInfo is the content of a companion .ita metadata file
type CardInfo struct {
	Cards [NumCards]Card
	// Ignored holds lines that were not card settings
	Ignored []string
}

// GainFromCode maps a gain code to its amplification factor
func GainFromCode(code string) (float64, error) {
	v, ok := gainCodes[code]
	if !ok {
		return 0, &UnknownCodeError{Key: "gain", Code: code}
	}
	return v, nil
}

// LPFFromCode maps a low pass filter code to its cutoff in Hz
func LPFFromCode(code string) (float64, error) {
	v, ok := lpfCodes[code]
	if !ok {
		return 0, &UnknownCodeError{Key: "lpf", Code: code}
	}
	return v, nil
}

// OnFromCode maps an on/off code to a boolean
func OnFromCode(code string) (bool, error) {
	v, ok := onCodes[code]
	if !ok {
		return false, &UnknownCodeError{Key: "on", Code: code}
	}
	return v, nil
}

// ScaleFactor converts a gain into microvolts per ADC count
func ScaleFactor(gain float64) float64 {
	return (VRef * MicroV) / (BitRes * gain)
}

// newCardInfo returns card info with every card off at the lowest gain
func newCardInfo() *CardInfo {
	ci := &CardInfo{}
	for i := range ci.Cards {
		ci.Cards[i] = Card{Gain: gainCodes["0"], LPF: lpfCodes["0"]}
	}
	return ci
}

// ParseCardInfo reads Card.<n>.<key>=<value> lines. The Card prefix is
// matched case-insensitively and blank lines are skipped. Other lines are
// kept in Ignored. Unknown keys or codes are errors.
func ParseCardInfo(r io.Reader) (*CardInfo, error) {
	ci := newCardInfo()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len(line) < 5 || !strings.EqualFold(line[:5], "card.") {
			ci.Ignored = append(ci.Ignored, line)
			continue
		}
		card, key, val, err := parseCardLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		c := &ci.Cards[card]
		switch key {
		case "gain":
			c.Gain, err = GainFromCode(val)
		case "lpf":
			c.LPF, err = LPFFromCode(val)
		case "on":
			c.On, err = OnFromCode(val)
		default:
			err = &UnknownCodeError{Key: "key", Code: key}
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		c.Configured = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card info: %w", err)
	}
	return ci, nil
}

// parseCardLine splits "Card.3.gain=2" into 3, "gain", "2"
func parseCardLine(line string) (int, string, string, error) {
	fullKey, val, ok := strings.Cut(line, "=")
	if !ok {
		return 0, "", "", fmt.Errorf("missing '=' in %q", line)
	}
	parts := strings.Split(strings.TrimSpace(fullKey), ".")
	if len(parts) != 3 {
		return 0, "", "", fmt.Errorf("malformed key in %q", line)
	}
	card, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", "", fmt.Errorf("bad card number in %q: %w", line, err)
	}
	if card < 0 || card >= NumCards {
		return 0, "", "", fmt.Errorf("card number %d out of range 0-%d", card, NumCards-1)
	}
	return card, strings.ToLower(parts[2]), strings.ToLower(strings.TrimSpace(val)), nil
}

// CardInfoPaths returns the companion file names tried for a capture
func CardInfoPaths(capturePath string) []string {
	return []string{capturePath + ".ita", capturePath + ".ITA"}
}

// LoadCardInfo reads the companion metadata of a capture, trying the .ita
// suffix first and .ITA second. The returned error wraps fs.ErrNotExist when
// neither file exists.
func LoadCardInfo(capturePath string) (*CardInfo, error) {
	for _, p := range CardInfoPaths(capturePath) {
		f, err := os.Open(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ci, err := ParseCardInfo(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		return ci, nil
	}
	return nil, fmt.Errorf("no card info for %s: %w", capturePath, fs.ErrNotExist)
}

// ParseCardOrder parses a comma separated card order such as "1,0,2,...,15"
func ParseCardOrder(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	order := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("bad card number %q: %w", f, err)
		}
		order = append(order, n)
	}
	return order, nil
}

// ChannelMap expands a card order into the card index of every channel.
// cardOrder must be a permutation of 0..15; entry k names the card wired to
// channels 8k through 8k+7.
func ChannelMap(cardOrder []int) ([]int, error) {
	if len(cardOrder) != NumCards {
		return nil, fmt.Errorf("card order has %d entries, want %d", len(cardOrder), NumCards)
	}
	var seen [NumCards]bool
	for _, c := range cardOrder {
		if c < 0 || c >= NumCards || seen[c] {
			return nil, fmt.Errorf("card order %v is not a permutation of 0-%d", cardOrder, NumCards-1)
		}
		seen[c] = true
	}
	out := make([]int, 0, NumChannels)
	for _, c := range cardOrder {
		for i := 0; i < ChannelsPerCard; i++ {
			out = append(out, c)
		}
	}
	return out, nil
}

// ParseChannelNames parses "1:foo,2:bar" into channel aliases. An empty
// string yields an empty map.
func ParseChannelNames(s string) (map[int]string, error) {
	names := map[int]string{}
	if strings.TrimSpace(s) == "" {
		return names, nil
	}
	for _, pair := range strings.Split(s, ",") {
		num, name, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("bad channel name %q, want num:name", pair)
		}
		ch, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil {
			return nil, fmt.Errorf("bad channel number in %q: %w", pair, err)
		}
		if ch < 0 || ch >= NumChannels {
			return nil, fmt.Errorf("channel %d out of range 0-%d", ch, NumChannels-1)
		}
		names[ch] = strings.TrimSpace(name)
	}
	return names, nil
}

// ChannelCard returns the card settings of a channel under a channel map
func (ci *CardInfo) ChannelCard(channelMap []int, ch int) Card {
	return ci.Cards[channelMap[ch]]
}
