package machine

import (
	"fmt"
	"io"
)

// Level is the severity of a single LogSink entry.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// LogSink is the session-scoped event/message sink the core depends
// on at its boundary (§6.3). No structured logging library appears
// anywhere in the retrieval pack; this mirrors the teacher's own
// universal fmt.Printf-based logging idiom instead of reaching for one.
type LogSink struct {
	out       io.Writer
	stdout    io.Writer
	sessionID string
	events    []Event
	snapshots []Snapshot
}

// Event is a single structured occurrence recorded via LogEvent.
type Event struct {
	Type    string
	Payload map[string]interface{}
}

// Snapshot is an opaque, named state capture recorded via SaveSnapshot.
type Snapshot struct {
	Name    string
	Payload interface{}
}

// NewLogSink builds a sink writing log lines to out and program
// stdout (OUT instruction output) to stdout. Either may be io.Discard
// for headless testing.
func NewLogSink(out, stdout io.Writer) *LogSink {
	return &LogSink{out: out, stdout: stdout}
}

// CreateSession starts a new logical session for programName and
// returns its session id.
func (s *LogSink) CreateSession(programName string) string {
	s.sessionID = programName
	fmt.Fprintf(s.out, "session %q created\n", programName)
	return s.sessionID
}

// Log writes a leveled message tagged with the current RIP.
func (s *LogSink) Log(level Level, rip uint64, message string) {
	fmt.Fprintf(s.out, "[%s] rip=0x%x %s\n", level, rip, message)
}

// Logf is the formatted counterpart to Log.
func (s *LogSink) Logf(level Level, rip uint64, format string, args ...interface{}) {
	s.Log(level, rip, fmt.Sprintf(format, args...))
}

// LogEvent records a structured event for later inspection.
func (s *LogSink) LogEvent(eventType string, payload map[string]interface{}) {
	s.events = append(s.events, Event{Type: eventType, Payload: payload})
	fmt.Fprintf(s.out, "event %s %v\n", eventType, payload)
}

// SaveSnapshot records an opaque named snapshot.
func (s *LogSink) SaveSnapshot(name string, payload interface{}) {
	s.snapshots = append(s.snapshots, Snapshot{Name: name, Payload: payload})
}

// Events returns every event recorded so far, for test assertions.
func (s *LogSink) Events() []Event { return s.events }

// Stdout writes raw program output (the OUT instruction's target).
func (s *LogSink) Stdout(text string) {
	fmt.Fprint(s.stdout, text)
}
