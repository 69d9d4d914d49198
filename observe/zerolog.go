package observe

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologSink writes events as structured log lines.
type ZerologSink struct {
	log zerolog.Logger
}

// NewZerolog returns a Sink logging to l.
func NewZerolog(l zerolog.Logger) *ZerologSink {
	return &ZerologSink{log: l}
}

func (s *ZerologSink) Emit(e Event) {
	var ev *zerolog.Event
	switch e.Kind {
	case TerminationViolation, MessageFailed:
		ev = s.log.Error()
	case GroupCancelled, MessagesDropped, GroupTerminated, BatchAccepted, DispatchFinished:
		ev = s.log.Info()
	default:
		ev = s.log.Debug()
	}
	ev = ev.Str("event", string(e.Kind))
	if e.GroupID != NoGroup {
		ev = ev.Int("group_id", e.GroupID)
	}
	if e.MessageID != "" {
		ev = ev.Str("message_id", e.MessageID)
	}
	if e.Gateway != NoGateway {
		ev = ev.Int("gateway", e.Gateway)
	}
	if e.Count != 0 {
		ev = ev.Int("count", e.Count)
	}
	if e.Duration > 0 {
		ev = ev.Dur("duration", e.Duration)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	if !e.Time.IsZero() {
		ev = ev.Time("at", e.Time)
	}
	ev.Msg(describe(e))
}

func describe(e Event) string {
	switch e.Kind {
	case BatchAccepted:
		return "batch accepted"
	case BatchEmpty:
		return "empty batch, nothing to process"
	case GroupStarted:
		return fmt.Sprintf("starting group %d", e.GroupID)
	case MessageAssigned:
		return fmt.Sprintf("sending message in group %d to gateway %d", e.GroupID, e.Gateway)
	case MessageCompleted:
		return "message completed"
	case MessageFailed:
		return "message processing failed"
	case MessagesDropped:
		return fmt.Sprintf("dropped %d messages of cancelled group %d", e.Count, e.GroupID)
	case GroupCancelled:
		return fmt.Sprintf("cancelled group %d", e.GroupID)
	case GroupTerminated:
		return fmt.Sprintf("group %d terminated", e.GroupID)
	case TerminationViolation:
		return fmt.Sprintf("termination message for group %d already processed", e.GroupID)
	case DispatchFinished:
		return "processing complete"
	default:
		return string(e.Kind)
	}
}

// NewLogger builds a zerolog logger tagged with component.
// format "console" selects human-readable output; anything else writes JSON.
// A nil w writes to stdout.
func NewLogger(w io.Writer, component, level, format string) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger(), nil
}
