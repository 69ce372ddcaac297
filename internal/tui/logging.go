package tui

import (
	"io"

	"tuner/internal/log"

	tea "github.com/charmbracelet/bubbletea"
)

// DebugLogFile receives log output while a full-screen view is up and the
// log level is DEBUG.
const DebugLogFile = "tuner-debug.log"

// logSink lets bubbletea point the tuner's logger at a file.
type logSink struct{}

func (logSink) SetOutput(w io.Writer) { log.SetOutput(w) }
func (logSink) SetPrefix(string)      {}

// RedirectLogs moves log output off the terminal while the TUI owns it:
// into DebugLogFile at DEBUG level, otherwise nowhere. The returned func
// restores the previous destination.
func RedirectLogs() (restore func()) {
	prev := log.Writer()

	if log.GetLevel() == log.LevelDebug {
		f, err := tea.LogToFileWith(DebugLogFile, "", logSink{})
		if err == nil {
			return func() {
				log.SetOutput(prev)
				f.Close()
			}
		}
	}

	log.SetOutput(io.Discard)
	return func() { log.SetOutput(prev) }
}
