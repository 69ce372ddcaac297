package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"tuner/internal/tuner"
	"tuner/pkg/bitint"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	inTuneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C6C6C"))
)

// within this many cents of a semitone a reading counts as in tune
const inTuneCents = 5

// Controller is the part of the tuner the meter reads and adjusts.
// *tuner.Tuner implements it.
type Controller interface {
	Latest() tuner.Snapshot
	FFTSize() int
	SetFFTSize(n int) error
	StandardFrequency() float64
	SetStandardFrequency(hz float64) error
}

// MeterOptions configures the live meter.
type MeterOptions struct {
	Title    string // device description shown in the header
	Interval time.Duration

	// Export writes pitch tracks and returns the files written. The export
	// key is disabled when nil.
	Export func() ([]string, error)
}

type meterKeys struct {
	Quit, FFTDown, FFTUp, StdDown, StdUp, Export key.Binding
}

var meterKeyMap = meterKeys{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
	FFTDown: key.NewBinding(key.WithKeys("[")),
	FFTUp:   key.NewBinding(key.WithKeys("]")),
	StdDown: key.NewBinding(key.WithKeys("-")),
	StdUp:   key.NewBinding(key.WithKeys("+", "=")),
	Export:  key.NewBinding(key.WithKeys("e")),
}

type tickMsg time.Time

// MeterModel shows the latest reading of every channel as a cents gauge.
type MeterModel struct {
	ctl    Controller
	opts   MeterOptions
	snap   tuner.Snapshot
	status string
	width  int
}

// NewMeterModel creates a meter polling ctl every opts.Interval.
func NewMeterModel(ctl Controller, opts MeterOptions) MeterModel {
	if opts.Interval <= 0 {
		opts.Interval = tuner.DefaultInterval
	}
	return MeterModel{ctl: ctl, opts: opts, width: 80}
}

func (m MeterModel) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MeterModel) Init() tea.Cmd {
	return m.tick()
}

func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.snap = m.ctl.Latest()
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, meterKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, meterKeyMap.FFTDown):
			m.setFFTSize(bitint.PreviousPowerOfTwo(m.ctl.FFTSize() - 1))
		case key.Matches(msg, meterKeyMap.FFTUp):
			m.setFFTSize(bitint.NextPowerOfTwo(m.ctl.FFTSize() + 1))
		case key.Matches(msg, meterKeyMap.StdDown):
			m.setStandard(m.ctl.StandardFrequency() - 1)
		case key.Matches(msg, meterKeyMap.StdUp):
			m.setStandard(m.ctl.StandardFrequency() + 1)
		case key.Matches(msg, meterKeyMap.Export):
			m.export()
		}
	}
	return m, nil
}

func (m *MeterModel) setFFTSize(n int) {
	if err := m.ctl.SetFFTSize(n); err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("fft size %d", n)
}

func (m *MeterModel) setStandard(hz float64) {
	if err := m.ctl.SetStandardFrequency(hz); err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf("standard frequency %.0f Hz", hz)
}

func (m *MeterModel) export() {
	if m.opts.Export == nil {
		m.status = "export directory not configured"
		return
	}
	paths, err := m.opts.Export()
	if err != nil {
		m.status = "export failed: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("exported %d track(s)", len(paths))
}

func (m MeterModel) View() string {
	var sb strings.Builder

	title := "Tuner"
	if m.opts.Title != "" {
		title += " · " + m.opts.Title
	}
	sb.WriteString(titleStyle.Render(title))
	fmt.Fprintf(&sb, "\n\nstandard %.1f Hz · fft %d · %.1f s captured\n\n",
		m.ctl.StandardFrequency(), m.ctl.FFTSize(), m.snap.Time)

	gaugeWidth := max(min(m.width-40, 51), 11)
	for _, r := range m.snap.Readings {
		sb.WriteString(renderReading(r, gaugeWidth))
		sb.WriteString("\n")
	}

	if len(m.snap.Differences) > 0 {
		sb.WriteString("\n")
		for _, d := range m.snap.Differences {
			fmt.Fprintf(&sb, "ch %d - ch %d: %s\n", d.A, d.B, formatCents(d.Cents))
		}
	}

	if m.status != "" {
		sb.WriteString("\n" + warnStyle.Render(m.status) + "\n")
	}
	help := "[/]: FFT size • -/+: Standard • q: Quit"
	if m.opts.Export != nil {
		help = "[/]: FFT size • -/+: Standard • e: Export • q: Quit"
	}
	sb.WriteString("\n" + infoStyle.Render(help))
	return sb.String()
}

// renderReading is one meter line: channel, frequency, cents and a gauge
// of the deviation from the nearest semitone.
func renderReading(r tuner.Reading, width int) string {
	if !r.Valid {
		return dimStyle.Render(fmt.Sprintf("ch %d  %9s  %10s  %s", r.Channel, "--", "--", gauge(math.NaN(), width)))
	}
	semitones, dev := Deviation(r.Cents)
	line := fmt.Sprintf("ch %d  %7.2f Hz  %+4d st %+5.1f  %s  conf %.2f",
		r.Channel, r.Hz, semitones, dev, gauge(dev, width), r.Confidence)
	if math.Abs(dev) <= inTuneCents {
		return inTuneStyle.Render(line)
	}
	return line
}

// Deviation splits cents into the nearest semitone and the remaining
// offset in [-50, 50].
func Deviation(cents float64) (int, float64) {
	st := math.Round(cents / 100)
	return int(st), cents - st*100
}

// gauge draws dev (cents, -50..50) as a marker on a centred scale of
// width cells. NaN draws an empty scale.
func gauge(dev float64, width int) string {
	if width%2 == 0 {
		width++
	}
	cells := []rune(strings.Repeat("─", width))
	mid := width / 2
	cells[mid] = '┼'
	if !math.IsNaN(dev) {
		pos := mid + int(math.Round(dev/50*float64(mid)))
		pos = max(min(pos, width-1), 0)
		cells[pos] = '●'
	}
	return "[" + string(cells) + "]"
}

func formatCents(c float64) string {
	if math.IsNaN(c) {
		return "--"
	}
	return fmt.Sprintf("%+.1f ¢", c)
}

// RunMeter shows the meter full screen until the user quits.
func RunMeter(ctl Controller, opts MeterOptions) error {
	p := tea.NewProgram(NewMeterModel(ctl, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
