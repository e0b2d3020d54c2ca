// Package ui is the terminal dashboard.
package ui

import (
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/healthmon/internal/alert"
	"codeberg.org/mutker/healthmon/internal/metrics"
	"codeberg.org/mutker/healthmon/internal/notify"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	refreshInterval = time.Second / 4
	recentEvents    = 6
	bytesPerGiB     = 1 << 30
)

// Source is the part of the monitor the dashboard renders.
type Source interface {
	Snapshot() metrics.Snapshot
	ActiveAlerts() []alert.Kind
	ActiveInterface() string
	SubscribeAlerts(fn func(alert.Event), names ...alert.Name) (unsubscribe func())
}

// Model renders the latest snapshot of a Source.
type Model struct {
	src         Source
	hostname    string
	latest      metrics.Snapshot
	active      []alert.Kind
	iface       string
	events      <-chan alert.Event
	unsubscribe func()
	recent      []alert.Event
	width       int
	height      int
}

func New(src Source, hostname string) *Model {
	events, unsubscribe := notify.Chan(func(fn func(alert.Event)) func() {
		return src.SubscribeAlerts(fn)
	}, 32)

	return &Model{
		src:         src,
		hostname:    hostname,
		events:      events,
		unsubscribe: unsubscribe,
		width:       120,
		height:      40,
	}
}

// Seed fills the recent events card with history, oldest first, before any
// live event arrives.
func (m *Model) Seed(history []alert.Event) {
	m.recent = appendRecent(m.recent, history...)
}

func appendRecent(recent []alert.Event, events ...alert.Event) []alert.Event {
	recent = append(recent, events...)
	if len(recent) > recentEvents {
		recent = recent[len(recent)-recentEvents:]
	}
	return recent
}

// Messages
type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) Init() tea.Cmd {
	m.refresh()
	return tickCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.unsubscribe()
			return m, tea.Quit
		}
	case tickMsg:
		m.refresh()
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) refresh() {
	m.latest = m.src.Snapshot()
	m.active = m.src.ActiveAlerts()
	m.iface = m.src.ActiveInterface()

	for {
		select {
		case e := <-m.events:
			m.recent = appendRecent(m.recent, e)
		default:
			return
		}
	}
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	s := m.latest

	updated := "waiting for first sample"
	if !s.Timestamp.IsZero() {
		updated = s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006")
	}
	header := titleStyle.Render("healthmon "+m.hostname) + "  " + subtleStyle.Render(updated)

	cpuCard := card("CPU",
		fmt.Sprintf("%s  %4.1f°C", gaugeBar(s.CPUUsagePct, 24), s.CPUTempC))

	memCard := card("Memory",
		fmt.Sprintf("%s  %.1f/%.1f GiB free",
			gaugeBar(s.MemUsagePct, 24),
			bytesToGiB(s.MemAvailableBytes),
			bytesToGiB(s.MemTotalBytes)))

	diskCard := card("Disk",
		fmt.Sprintf("%s  %.1f/%.1f GiB free",
			gaugeBar(s.DiskUsagePct, 24),
			bytesToGiB(s.DiskAvailableBytes),
			bytesToGiB(s.DiskTotalBytes)))

	netStatus := alertStyle.Render("disconnected")
	if s.NetConnected {
		netStatus = okStyle.Render("connected")
	}
	iface := m.iface
	if iface == "" {
		iface = "-"
	}
	netCard := card("Network",
		fmt.Sprintf("%s on %s\n↓ %8.1f kb/s  ↑ %8.1f kb/s", netStatus, truncate(iface, 16), s.NetDownKBs, s.NetUpKBs))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, cpuCard, memCard)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, diskCard, netCard)
	line3 := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Active alerts", renderActive(m.active)),
		card("Recent events", renderEvents(m.recent)))

	footer := subtleStyle.Render("q to quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, line3, footer)
}

func renderActive(kinds []alert.Kind) string {
	if len(kinds) == 0 {
		return okStyle.Render("none")
	}

	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, alertStyle.Render(k.String()))
	}
	return strings.Join(names, "\n")
}

func renderEvents(events []alert.Event) string {
	if len(events) == 0 {
		return subtleStyle.Render("no events yet")
	}

	var b strings.Builder
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		name := string(e.Name())
		if e.Active {
			name = alertStyle.Render(name)
		}
		fmt.Fprintf(&b, "%s %s\n", e.Time.Format("15:04:05"), name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Helpers
func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func bytesToGiB(b int64) float64 {
	return float64(b) / bytesPerGiB
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
