package logger

import (
	"fmt"
	"strings"
)

// TraceSection is one titled block of a trace entry.
type TraceSection struct {
	Title string
	Body  string
}

// SegmentSection builds a section only when segment dumps are enabled.
func SegmentSection(title string, rows []string) (TraceSection, bool) {
	if !segmentsEnabled() || len(rows) == 0 {
		return TraceSection{}, false
	}
	return TraceSection{Title: title, Body: strings.Join(rows, "\n")}, true
}

// LogTrace writes one analysis trace:
//
//	[TRACE][scan][<trace id>]
//	--- TITLE ---
//	body
//	=====
//
// Without a trace file the entry goes to the main log at debug level.
func LogTrace(kind, traceID string, sections []TraceSection) {
	s := snapshot()
	if s.trace == nil {
		Debugf("%s", formatTrace(kind, traceID, sections))
		return
	}
	s.trace.Print(formatTrace(kind, traceID, sections))
}

func formatTrace(kind, traceID string, sections []TraceSection) string {
	var b strings.Builder
	b.WriteString("[TRACE]")
	for _, tag := range []string{kind, traceID} {
		if tag == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s]", tag)
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(strings.ToUpper(t))
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	return b.String()
}
