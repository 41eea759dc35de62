// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/itekstat/pkg/itek"
	"github.com/Thermoquad/itekstat/pkg/publish"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	tracker       *frameTracker
	publisher     *publish.Publisher
	eventLog      []eventLogEntry
	maxLogEntries int
	ticks         int
	streamErr     error
	streamEnded   bool
	lastRecord    *itek.SampleRecord
	spinner       spinner.Model
	health        progress.Model
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type linkDataMsg []byte
type linkErrMsg struct {
	err error
}

func initialModel(connInfo string, statsInterval int, showAll bool, pub *publish.Publisher) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		tracker:       newFrameTracker(),
		publisher:     pub,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		spinner:       sp,
		health:        progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.health.Width = max(msg.Width-24, 10)

	case spinner.TickMsg:
		if m.tracker.Synchronized() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.tracker.stats.CalculateRates()
		m.ticks++
		if m.statsInterval > 0 && m.ticks%m.statsInterval == 0 {
			publishStats(m.publisher, m.connInfo, m.tracker.stats)
		}
		return m, tickCmd()

	case linkDataMsg:
		m.handleData(msg)

	case linkErrMsg:
		m.streamEnded = true
		if !isEndOfStream(msg.err) {
			m.streamErr = msg.err
			m.addLogEntry(fmt.Sprintf("READ ERROR: %v", msg.err), true)
		} else {
			m.addLogEntry("Stream ended", false)
		}
		publishStats(m.publisher, m.connInfo, m.tracker.stats)
	}

	return m, nil
}

// handleData feeds link bytes through the tracker and logs the events
func (m *model) handleData(data []byte) {
	wasSynced := m.tracker.Synchronized()
	m.tracker.Feed(data, func(ev linkEvent) {
		if ev.syncLost {
			m.addLogEntry("SYNC LOST: searching for next frame", true)
			return
		}
		if !wasSynced {
			wasSynced = true
			if m.tracker.leading > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", m.tracker.leading), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}

		rec := itek.DecodeFrame(&ev.frame.Raw)
		m.lastRecord = &rec

		if ev.gap != nil {
			if ev.gap.Ambiguous {
				m.addLogEntry("AMBIGUOUS GAP "+ev.gap.String(), true)
			} else {
				m.addLogEntry(fmt.Sprintf("GAP: %d frames missing after index %d", ev.gap.Missing, ev.gap.StartIndex), false)
			}
		}
		if ev.duplicate {
			m.addLogEntry(fmt.Sprintf("DUPLICATE: record #%d at index %d", ev.frame.Raw.RecordNumber(), ev.index), false)
		}
		for _, a := range ev.anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", a.Type, a.Message), true)
		}
		if m.showAll && ev.gap == nil && !ev.duplicate && len(ev.anomalies) == 0 {
			m.addLogEntry(fmt.Sprintf("Record #%d -> index %d (valid)", ev.frame.Raw.RecordNumber(), ev.index), false)
		}
	})
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("ITEKSTAT - MONITOR"))
	s.WriteString("\n")
	mode := "Events only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	stats := m.tracker.stats
	switch {
	case m.streamErr != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Link failed: %v", m.streamErr)))
	case m.streamEnded:
		s.WriteString(warningStyle.Render("■ Stream ended"))
	case !m.tracker.Synchronized():
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Waiting for synchronization..."))
	case !m.tracker.sync.Synced():
		s.WriteString(errorStyle.Render("✗ Alignment lost, resynchronizing"))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.tracker.leading > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.tracker.leading)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	stats.CalculateRates()
	var receivedShare float64
	if stats.LogicalFrames > 0 {
		receivedShare = 1 - float64(stats.MissingFrames)/float64(stats.LogicalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Logical:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.LogicalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.ValidFrames)),
		statsLabelStyle.Render("Missing:"), func() string {
			text := fmt.Sprintf("%d (%.2f%%)", stats.MissingFrames, stats.LossPercent())
			if stats.MissingFrames > 0 {
				return errorStyle.Render(text)
			}
			return statsValueStyle.Render(text)
		}(),
	))

	if stats.Gaps > 0 || stats.Duplicates > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Gaps:"), warningStyle.Render(fmt.Sprintf("%d", stats.Gaps)),
			statsLabelStyle.Render("Ambiguous:"), errorStyle.Render(fmt.Sprintf("%d", stats.AmbiguousGaps)),
			statsLabelStyle.Render("Duplicates:"), warningStyle.Render(fmt.Sprintf("%d", stats.Duplicates)),
		))
	}

	if stats.SkippedBytes > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d)\n",
			statsLabelStyle.Render("Skipped bytes:"), warningStyle.Render(fmt.Sprintf("%d", stats.SkippedBytes)),
			headerStyle.Render("resyncs"), stats.Resyncs,
		))
	}

	if stats.BufferOverflow > 0 || stats.FIFOOverflow > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Buffer overflow:"), errorStyle.Render(fmt.Sprintf("%d", stats.BufferOverflow)),
			statsLabelStyle.Render("FIFO overflow:"), errorStyle.Render(fmt.Sprintf("%d", stats.FIFOOverflow)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s (nominal %.1f)", stats.FrameRate, itek.SamplesPerSecond)),
		statsLabelStyle.Render("Loss Rate:"), func() string {
			if stats.LossRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f/s", stats.LossRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f/s", stats.LossRate))
		}(),
	))
	statsContent.WriteString(statsLabelStyle.Render("Received: "))
	statsContent.WriteString(m.health.ViewAs(receivedShare))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest frame header
	if m.lastRecord != nil {
		s.WriteString(statsLabelStyle.Render("Latest Frame:"))
		s.WriteString("\n")
		r := m.lastRecord
		frameContent := fmt.Sprintf("%s %s   %s %s   %s 0x%02X   %s 0x%04X\n%s %s",
			statsLabelStyle.Render("Record:"), statsValueStyle.Render(fmt.Sprintf("#%d", stats.LastRecord)),
			statsLabelStyle.Render("Index:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.LastIndex)),
			statsLabelStyle.Render("Parallel:"), r.ParallelPort,
			statsLabelStyle.Render("TR:"), r.TRRegister,
			statsLabelStyle.Render("Status:"), statsValueStyle.Render(itek.FormatStatusFlags(r.StatusFlags)),
		)
		s.WriteString(boxStyle.Render(frameContent))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := max(m.height-18, 5)

	logContent := strings.Builder{}
	startIdx := max(len(m.eventLog)-logHeight, 0)

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
